package queue

import "fmt"

// PolicyKind names a consumption policy.
type PolicyKind string

const (
	PolicyAll    PolicyKind = "all"
	PolicyBatch  PolicyKind = "batch"
	PolicySingle PolicyKind = "single"
)

// DefaultBatchSize is the prefix length drained by the batch policy.
const DefaultBatchSize = 5

// Policy decides which prefix of the queue one drain consumes.
type Policy struct {
	Kind PolicyKind
	Size int // batch only
}

// ParsePolicy builds a Policy from its configured name.
func ParsePolicy(kind string, batchSize int) (Policy, error) {
	switch PolicyKind(kind) {
	case PolicyAll:
		return AllPolicy(), nil
	case PolicySingle:
		return SinglePolicy(), nil
	case PolicyBatch, "":
		if batchSize <= 0 {
			batchSize = DefaultBatchSize
		}
		return BatchPolicy(batchSize), nil
	default:
		return Policy{}, fmt.Errorf("unknown queue policy %q", kind)
	}
}

// AllPolicy drains every entry.
func AllPolicy() Policy { return Policy{Kind: PolicyAll} }

// BatchPolicy drains the first n entries.
func BatchPolicy(n int) Policy { return Policy{Kind: PolicyBatch, Size: n} }

// SinglePolicy drains the first entry.
func SinglePolicy() Policy { return Policy{Kind: PolicySingle} }

// Select splits entries into the prefix to process now and the rest.
// Both results preserve file order.
func (p Policy) Select(entries []string) (selected, remaining []string) {
	n := len(entries)
	switch p.Kind {
	case PolicySingle:
		n = 1
	case PolicyBatch:
		n = p.Size
	}
	if n > len(entries) {
		n = len(entries)
	}
	if n < 0 {
		n = 0
	}

	selected = append([]string(nil), entries[:n]...)
	remaining = append([]string{}, entries[n:]...)
	return selected, remaining
}

func (p Policy) String() string {
	if p.Kind == PolicyBatch {
		return fmt.Sprintf("batch(%d)", p.Size)
	}
	return string(p.Kind)
}
