package apdu

import (
	"fmt"
)

// Status is the 2-byte word terminating every raw device response.
type Status uint16

const (
	StatusOK Status = 0x9000

	StatusAccessConditionNotFulfilled       Status = 0x9804
	StatusAlgorithmNotSupported             Status = 0x9484
	StatusClaNotSupported                   Status = 0x6e00
	StatusCodeBlocked                       Status = 0x9840
	StatusCodeNotInitialized                Status = 0x9802
	StatusCommandIncompatibleFileStructure  Status = 0x6981
	StatusConditionsOfUseNotSatisfied       Status = 0x6985
	StatusContradictionInvalidation         Status = 0x9810
	StatusContradictionSecretCodeStatus     Status = 0x9808
	StatusCustomImageBootloader             Status = 0x662f
	StatusCustomImageEmpty                  Status = 0x662e
	StatusFileAlreadyExists                 Status = 0x6a89
	StatusFileNotFound                      Status = 0x9404
	StatusGPAuthFailed                      Status = 0x6300
	StatusHalted                            Status = 0x6faa
	StatusInconsistentFile                  Status = 0x9408
	StatusIncorrectData                     Status = 0x6a80
	StatusIncorrectLength                   Status = 0x6700
	StatusIncorrectP1P2                     Status = 0x6b00
	StatusInsNotSupported                   Status = 0x6d00
	StatusInvalidKCV                        Status = 0x9485
	StatusInvalidOffset                     Status = 0x9402
	StatusLicensing                         Status = 0x6f42
	StatusLockedDevice                      Status = 0x5515
	StatusMaxValueReached                   Status = 0x9850
	StatusMemoryProblem                     Status = 0x9240
	StatusMissingCriticalParameter          Status = 0x6800
	StatusNoEFSelected                      Status = 0x9400
	StatusNotEnoughMemorySpace              Status = 0x6a84
	StatusNotEnoughSpace                    Status = 0x5102
	StatusPinRemainingAttempts              Status = 0x63c0
	StatusReferencedDataNotFound            Status = 0x6a88
	StatusSecurityStatusNotSatisfied        Status = 0x6982
	StatusTechnicalProblem                  Status = 0x6f00
	StatusUnknownAPDU                       Status = 0x6d02
	StatusUserRefusedOnDevice               Status = 0x5501
)

var statusNames = map[Status]string{
	StatusOK:                               "OK",
	StatusAccessConditionNotFulfilled:      "ACCESS_CONDITION_NOT_FULFILLED",
	StatusAlgorithmNotSupported:            "ALGORITHM_NOT_SUPPORTED",
	StatusClaNotSupported:                  "CLA_NOT_SUPPORTED",
	StatusCodeBlocked:                      "CODE_BLOCKED",
	StatusCodeNotInitialized:               "CODE_NOT_INITIALIZED",
	StatusCommandIncompatibleFileStructure: "COMMAND_INCOMPATIBLE_FILE_STRUCTURE",
	StatusConditionsOfUseNotSatisfied:      "CONDITIONS_OF_USE_NOT_SATISFIED",
	StatusContradictionInvalidation:        "CONTRADICTION_INVALIDATION",
	StatusContradictionSecretCodeStatus:    "CONTRADICTION_SECRET_CODE_STATUS",
	StatusCustomImageBootloader:            "CUSTOM_IMAGE_BOOTLOADER",
	StatusCustomImageEmpty:                 "CUSTOM_IMAGE_EMPTY",
	StatusFileAlreadyExists:                "FILE_ALREADY_EXISTS",
	StatusFileNotFound:                     "FILE_NOT_FOUND",
	StatusGPAuthFailed:                     "GP_AUTH_FAILED",
	StatusHalted:                           "HALTED",
	StatusInconsistentFile:                 "INCONSISTENT_FILE",
	StatusIncorrectData:                    "INCORRECT_DATA",
	StatusIncorrectLength:                  "INCORRECT_LENGTH",
	StatusIncorrectP1P2:                    "INCORRECT_P1_P2",
	StatusInsNotSupported:                  "INS_NOT_SUPPORTED",
	StatusInvalidKCV:                       "INVALID_KCV",
	StatusInvalidOffset:                    "INVALID_OFFSET",
	StatusLicensing:                        "LICENSING",
	StatusLockedDevice:                     "LOCKED_DEVICE",
	StatusMaxValueReached:                  "MAX_VALUE_REACHED",
	StatusMemoryProblem:                    "MEMORY_PROBLEM",
	StatusMissingCriticalParameter:         "MISSING_CRITICAL_PARAMETER",
	StatusNoEFSelected:                     "NO_EF_SELECTED",
	StatusNotEnoughMemorySpace:             "NOT_ENOUGH_MEMORY_SPACE",
	StatusNotEnoughSpace:                   "NOT_ENOUGH_SPACE",
	StatusPinRemainingAttempts:             "PIN_REMAINING_ATTEMPTS",
	StatusReferencedDataNotFound:           "REFERENCED_DATA_NOT_FOUND",
	StatusSecurityStatusNotSatisfied:       "SECURITY_STATUS_NOT_SATISFIED",
	StatusTechnicalProblem:                 "TECHNICAL_PROBLEM",
	StatusUnknownAPDU:                      "UNKNOWN_APDU",
	StatusUserRefusedOnDevice:              "USER_REFUSED_ON_DEVICE",
}

// Name returns the symbolic name of the status word. Unknown words classify
// as UNKNOWN_ERROR instead of failing.
func (s Status) Name() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "UNKNOWN_ERROR"
}

// Hint returns a human-readable explanation for the common status words, or
// an empty string when none is known. Every word in 0x6f00-0x6fff is an
// internal device error.
func (s Status) Hint() string {
	switch s {
	case StatusIncorrectLength:
		return "Incorrect length"
	case StatusMissingCriticalParameter:
		return "Missing critical parameter"
	case StatusSecurityStatusNotSatisfied:
		return "Security not satisfied (dongle locked or have invalid access rights)"
	case StatusConditionsOfUseNotSatisfied:
		return "Condition of use not satisfied (denied by the user?)"
	case StatusIncorrectData:
		return "Invalid data received"
	case StatusIncorrectP1P2:
		return "Invalid parameter received"
	case StatusLockedDevice:
		return "Device is locked"
	}
	if s >= 0x6f00 && s <= 0x6fff {
		return "Internal error, please report"
	}
	return ""
}

// StatusError is a device rejection carrying the raw status word.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	if hint := e.Status.Hint(); hint != "" {
		return fmt.Sprintf("device: %s (0x%04x): %s", e.Status.Name(), uint16(e.Status), hint)
	}
	return fmt.Sprintf("device: %s (0x%04x)", e.Status.Name(), uint16(e.Status))
}

// Is matches two StatusError values by status word, so
// errors.Is(err, ErrLockedDevice) works across wrapping.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	return ok && t.Status == e.Status
}

// ErrLockedDevice is the distinguished locked-device condition; callers are
// expected to prompt the user to unlock rather than report a failure.
var ErrLockedDevice = &StatusError{Status: StatusLockedDevice}

// NewStatusError wraps a non-OK status word into its typed error.
func NewStatusError(s Status) error {
	return &StatusError{Status: s}
}
