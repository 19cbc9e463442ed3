// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

// ValidationResult represents the result coming from the candidate validation subsystem.
// If the result is invalid, the reason for invalidity is stored in Invalid.
type ValidationResult struct {
	Valid   bool
	Invalid *ReasonForInvalidity
}

// NewValidResult returns a valid ValidationResult.
func NewValidResult() ValidationResult {
	return ValidationResult{Valid: true}
}

// NewInvalidResult returns an invalid ValidationResult with the reason given.
func NewInvalidResult(reason ReasonForInvalidity) ValidationResult {
	return ValidationResult{Invalid: &reason}
}

// IsValid returns true if the candidate was found valid.
func (vr ValidationResult) IsValid() bool {
	return vr.Valid
}

func (vr ValidationResult) String() string {
	if vr.Valid {
		return "valid"
	}
	if vr.Invalid == nil {
		return "invalid"
	}
	return "invalid: " + vr.Invalid.Error()
}

// ReasonForInvalidity is the reason a candidate was found invalid.
type ReasonForInvalidity byte

const (
	// ExecutionError Failed to execute `validate_block`. This includes function panicking.
	ExecutionError ReasonForInvalidity = iota
	// InvalidOutputs Validation outputs check doesn't pass.
	InvalidOutputs
	// Timeout Execution timeout.
	Timeout
	// ParamsTooLarge Validation input is over the limit.
	ParamsTooLarge
	// CodeTooLarge Code size is over the limit.
	CodeTooLarge
	// PoVDecompressionFailure PoV does not decompress correctly.
	PoVDecompressionFailure
	// BadReturn Validation function returned invalid data.
	BadReturn
	// BadParent Invalid relay chain parent.
	BadParent
	// PoVHashMismatch POV hash does not match.
	PoVHashMismatch
	// BadSignature Bad collator signature.
	BadSignature
	// ParaHeadHashMismatch Para head hash does not match.
	ParaHeadHashMismatch
	// CodeHashMismatch Validation code hash does not match.
	CodeHashMismatch
	// CommitmentsHashMismatch Validation has generated different candidate commitments.
	CommitmentsHashMismatch
)

func (ci ReasonForInvalidity) Error() string {
	switch ci {
	case ExecutionError:
		return "failed to execute `validate_block`"
	case InvalidOutputs:
		return "validation outputs check doesn't pass"
	case Timeout:
		return "execution timeout"
	case ParamsTooLarge:
		return "validation input is over the limit"
	case CodeTooLarge:
		return "code size is over the limit"
	case PoVDecompressionFailure:
		return "PoV does not decompress correctly"
	case BadReturn:
		return "validation function returned invalid data"
	case BadParent:
		return "invalid relay chain parent"
	case PoVHashMismatch:
		return "PoV hash does not match"
	case BadSignature:
		return "bad collator signature"
	case ParaHeadHashMismatch:
		return "para head hash does not match"
	case CodeHashMismatch:
		return "validation code hash does not match"
	case CommitmentsHashMismatch:
		return "validation has generated different candidate commitments"
	default:
		return "unknown invalidity reason"
	}
}

// ParseReasonForInvalidity returns the reason whose snake case name is s.
func ParseReasonForInvalidity(s string) (reason ReasonForInvalidity, ok bool) {
	reasons := map[string]ReasonForInvalidity{
		"execution_error":           ExecutionError,
		"invalid_outputs":           InvalidOutputs,
		"timeout":                   Timeout,
		"params_too_large":          ParamsTooLarge,
		"code_too_large":            CodeTooLarge,
		"pov_decompression_failure": PoVDecompressionFailure,
		"bad_return":                BadReturn,
		"bad_parent":                BadParent,
		"pov_hash_mismatch":         PoVHashMismatch,
		"bad_signature":             BadSignature,
		"para_head_hash_mismatch":   ParaHeadHashMismatch,
		"code_hash_mismatch":        CodeHashMismatch,
		"commitments_hash_mismatch": CommitmentsHashMismatch,
	}
	reason, ok = reasons[s]
	return reason, ok
}
