package enums

import "fmt"

// ProofFileStatus is the status_file flag sent with a proof update.
type ProofFileStatus int

const (
	// ProofFileUnchanged leaves the stored path as is.
	ProofFileUnchanged ProofFileStatus = 0
	// ProofFileReplace swaps the stored file for the uploaded one, or clears
	// it when nothing was uploaded.
	ProofFileReplace ProofFileStatus = 1
)

func (s ProofFileStatus) IsValid() bool {
	return s == ProofFileUnchanged || s == ProofFileReplace
}

// ParseProofFileStatus converts the numeric flag into ProofFileStatus.
func ParseProofFileStatus(value int) (ProofFileStatus, error) {
	s := ProofFileStatus(value)
	if !s.IsValid() {
		return 0, fmt.Errorf("invalid status_file %d", value)
	}
	return s, nil
}
