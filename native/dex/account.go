package dex

import (
	"fmt"
	"strings"

	"leasechain/crypto"
)

// Channel pairs the local and remote ends of an IBC channel.
type Channel struct {
	Local  string
	Remote string
}

// Connection holds the IBC parameters towards the DEX chain.
type Connection struct {
	ConnectionID    string
	TransferChannel Channel
}

// Validate checks every identifier is present.
func (c Connection) Validate() error {
	if strings.TrimSpace(c.ConnectionID) == "" {
		return fmt.Errorf("%w: connection id required", ErrInvalidAccount)
	}
	if c.TransferChannel.Local == "" || c.TransferChannel.Remote == "" {
		return fmt.Errorf("%w: transfer channel ends required", ErrInvalidAccount)
	}
	return nil
}

// Account is an interchain account on the DEX chain controlled by Owner.
type Account struct {
	Owner      crypto.Address
	Host       string
	Connection Connection
}

// NewAccount builds an account from a registration acknowledgement.
func NewAccount(owner crypto.Address, host string, conn Connection) (Account, error) {
	if owner.IsZero() {
		return Account{}, fmt.Errorf("%w: owner required", ErrInvalidAccount)
	}
	if strings.TrimSpace(host) == "" {
		return Account{}, fmt.Errorf("%w: host address required", ErrInvalidAccount)
	}
	if err := conn.Validate(); err != nil {
		return Account{}, err
	}
	return Account{Owner: owner, Host: host, Connection: conn}, nil
}

// Opened reports whether the account was acknowledged.
func (a Account) Opened() bool { return a.Host != "" }
