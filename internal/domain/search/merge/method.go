package merge

// Method is the fusion algorithm of a merge policy.
type Method string

// Merge method constants.
const (
	// ReciprocalRank sums 1/(k+rank) across the member bridges.
	ReciprocalRank Method = "reciprocal_rank"
	// Expr takes the result list of the single bridge named by the expression.
	Expr Method = "expr"
)

// IsValid checks if the method is one of the supported values.
func (m Method) IsValid() bool {
	return m == ReciprocalRank || m == Expr
}
