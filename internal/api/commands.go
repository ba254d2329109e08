package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/khalecl/supply-chain-idle/internal/buildings"
	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/geology"
)

// command wraps a game command: it times the call, records metrics and
// renders either the result or the mapped error.
func (s *Server) command(name string, fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		res, err := fn(r)
		if s.Metrics != nil {
			s.Metrics.RecordCommand(name, time.Since(start), err)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badRequest("invalid json: %v", err)
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, badRequest("invalid building id %q", r.PathValue("id"))
	}
	return id, nil
}

type placement struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (p placement) position() buildings.Position { return buildings.Position{X: p.X, Z: p.Z} }

type created struct {
	ID uint64 `json:"id"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// ── Farms ─────────────────────────────────────────────────────────────

func (s *Server) buyFarm(r *http.Request) (any, error) {
	var req placement
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	id, err := s.Game.BuyFarm(req.position())
	if err != nil {
		return nil, err
	}
	return created{ID: id}, nil
}

func (s *Server) cancelFarm(r *http.Request) (any, error) {
	if err := s.Game.CancelFarmPlacement(); err != nil {
		return nil, err
	}
	return okResponse{true}, nil
}

func (s *Server) selectCrop(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	var req struct {
		Crop catalog.ResourceID `json:"crop"`
	}
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.Game.SelectCrop(id, req.Crop); err != nil {
		return nil, err
	}
	return okResponse{true}, nil
}

func (s *Server) harvestFarm(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	if err := s.Game.HarvestFarm(id); err != nil {
		return nil, err
	}
	return okResponse{true}, nil
}

// ── Processors ────────────────────────────────────────────────────────

func (s *Server) buyProcessor(r *http.Request) (any, error) {
	var req struct {
		placement
		Type catalog.ProcessorType `json:"type"`
	}
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	id, err := s.Game.BuyProcessor(req.Type, req.position())
	if err != nil {
		return nil, err
	}
	return created{ID: id}, nil
}

func (s *Server) loadProcessor(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.Game.LoadProcessor(id, req.Amount); err != nil {
		return nil, err
	}
	return okResponse{true}, nil
}

func (s *Server) harvestProcessor(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	if err := s.Game.HarvestProcessor(id); err != nil {
		return nil, err
	}
	return okResponse{true}, nil
}

// ── Survey rigs and mines ─────────────────────────────────────────────

func (s *Server) buySurveyRig(r *http.Request) (any, error) {
	var req placement
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	id, err := s.Game.BuySurveyRig(req.position())
	if err != nil {
		return nil, err
	}
	return created{ID: id}, nil
}

func (s *Server) completeSurvey(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	results, err := s.Game.CompleteSurvey(id)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []geology.Discovery{}
	}
	return map[string]any{"results": results}, nil
}

// buyMine places a mine over a known resource when one is given, otherwise
// it probes the ground under the position.
func (s *Server) buyMine(r *http.Request) (any, error) {
	var req struct {
		placement
		Resource *catalog.ResourceID `json:"resource"`
	}
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	var (
		id  uint64
		err error
	)
	if req.Resource != nil {
		id, err = s.Game.BuyMine(req.position(), req.Resource)
	} else {
		id, err = s.Game.BuyMineAt(req.position())
	}
	if err != nil {
		return nil, err
	}
	return created{ID: id}, nil
}

func (s *Server) harvestMine(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	if err := s.Game.HarvestMine(id); err != nil {
		return nil, err
	}
	return okResponse{true}, nil
}

// ── Market and run ────────────────────────────────────────────────────

func (s *Server) sell(r *http.Request) (any, error) {
	var req struct {
		Resource catalog.ResourceID `json:"resource"`
		Amount   float64            `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	revenue, err := s.Game.SellResource(req.Resource, req.Amount)
	if err != nil {
		return nil, err
	}
	return map[string]float64{"revenue": revenue, "money": s.Game.Money()}, nil
}

func (s *Server) prestige(r *http.Request) (any, error) {
	level := s.Game.Prestige()
	return map[string]any{
		"prestigeLevel":   level,
		"speedMultiplier": s.Game.Catalog().SpeedMultiplier(level),
	}, nil
}

func (s *Server) tick(r *http.Request) (any, error) {
	var req struct {
		MS float64 `json:"ms"`
	}
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	d := time.Duration(req.MS * float64(time.Millisecond))
	if d <= 0 || d > maxTickStep {
		return nil, badRequest("ms must be in (0, %d]", maxTickStep.Milliseconds())
	}
	s.Game.Tick(d)
	completed := s.Game.CompleteReadySurveys()
	return map[string]any{"gameTimeMs": millis(s.Game.GameTime()), "surveysCompleted": completed}, nil
}

func (s *Server) reset(r *http.Request) (any, error) {
	s.Game.Reset()
	return okResponse{true}, nil
}
