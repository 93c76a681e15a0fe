package domain

// Chain identifies the network a token lives on.
type Chain string

const (
	ChainSolana Chain = "solana"
)

// String returns the string representation of Chain.
func (c Chain) String() string {
	return string(c)
}

// IsValid checks if the chain is a supported value.
func (c Chain) IsValid() bool {
	return c == ChainSolana
}

// TokenIdentifier is an already-extracted candidate token reference.
// Created per detection event by the external detector; ephemeral.
type TokenIdentifier struct {
	Address string // token mint address (base58)
	Chain   Chain  // network tag
	Symbol  string // optional ticker from the detection event
}

// IsZero reports whether the identifier carries no address.
func (t TokenIdentifier) IsZero() bool {
	return t.Address == ""
}
