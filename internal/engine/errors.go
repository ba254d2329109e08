package engine

import "errors"

// Game-rule failures. A command returning one of these left the game
// state unchanged.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrNotReady             = errors.New("building not ready")
	ErrUnknownBuilding      = errors.New("unknown building")
	ErrFarmPending          = errors.New("a farm is already awaiting crop selection")
	ErrNoPendingFarm        = errors.New("no farm awaiting crop selection")
	ErrUnknownCrop          = errors.New("unknown crop")
	ErrUnknownProcessor     = errors.New("unknown processor type")
	ErrUnknownResource      = errors.New("unknown resource")
	ErrInertMine            = errors.New("mine has no resource")
	ErrSurveyCompleted      = errors.New("survey already completed")
	ErrInvalidAmount        = errors.New("invalid amount")
)

var ruleErrors = []error{
	ErrInsufficientFunds, ErrInsufficientResource, ErrNotReady, ErrUnknownBuilding,
	ErrFarmPending, ErrNoPendingFarm, ErrUnknownCrop, ErrUnknownProcessor,
	ErrUnknownResource, ErrInertMine, ErrSurveyCompleted, ErrInvalidAmount,
}

// IsRuleError reports whether err is one of the game-rule failures above.
func IsRuleError(err error) bool {
	for _, target := range ruleErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
