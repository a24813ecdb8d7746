package testutil

import "github.com/mxyns/ietf-rfc-dep/internal/engine"

// FixedRunToken tags every resolve run with the same token.
//
// Unlike engine.FixedGenerator, which hands out a declared sequence and
// panics when it runs out, FixedRunToken never runs out, so a scenario
// does not need to know how many runs it will start.
//
// Thread-safety: FixedRunToken is stateless and safe for concurrent use.
type FixedRunToken struct {
	token string
}

var _ engine.RunTokenGenerator = (*FixedRunToken)(nil)

// NewFixedRunToken creates a generator returning token, or "run-default"
// when token is empty.
func NewFixedRunToken(token string) *FixedRunToken {
	if token == "" {
		token = "run-default"
	}
	return &FixedRunToken{token: token}
}

func (g *FixedRunToken) Generate() string {
	return g.token
}
