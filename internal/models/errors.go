package models

// ConflictError is a sentinel error of the conflict engine
type ConflictError struct {
	Message string
}

func (e ConflictError) Error() string {
	return e.Message
}

var (
	ErrDetectionFailed           = ConflictError{"conflict detection failed"}
	ErrPersistenceFailed         = ConflictError{"failed to persist conflict"}
	ErrConflictNotFound          = ConflictError{"conflict not found"}
	ErrConflictClosed            = ConflictError{"conflict is already resolved or ignored"}
	ErrUnsupportedAutoResolution = ConflictError{"no automated handler for resolution action"}
	ErrInvalidResolution         = ConflictError{"resolution action is required"}
	ErrResolverRequired          = ConflictError{"resolver identity is required"}
	ErrInvalidFilter             = ConflictError{"invalid conflict filter"}
	ErrBookingNotFound           = ConflictError{"booking not found"}
	ErrRoomRateNotFound          = ConflictError{"room rate not found"}
	ErrEmptyPropertyID           = ConflictError{"property id cannot be empty"}
)
