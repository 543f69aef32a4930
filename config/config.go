// Package config holds the on-disk, TOML-backed configuration for a
// channels user process: the seed it derives its identity from, the
// channel address and type it operates on, and the storage path for a
// local transport cache. It mirrors the teacher's own config package (a
// plain struct round-tripped through github.com/BurntSushi/toml) and the
// TOML projection methods key.PrivateTOML/PublicTOML already use for
// identity material.
package config

import (
	"encoding/hex"
	"errors"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/drand/channels/message"
	"github.com/drand/channels/user"
)

// ErrBadChannelType is returned when a config file names a channel type
// other than "single-branch" or "multi-branch".
var ErrBadChannelType = errors.New("config: unknown channel_type")

// Config is the TOML-able configuration for one user process.
type Config struct {
	// Seed is the user-supplied seed string spec.md §6 says the library
	// derives a fixed-size secret from via a sponge-based KDF. Never log
	// this value.
	Seed string `toml:"seed"`

	// ChannelAddress is the 40-byte channel address rendered as lowercase
	// hex (message.Address.String, spec.md §6), empty for an Author that
	// has not yet announced.
	ChannelAddress string `toml:"channel_address,omitempty"`

	// ChannelType is "single-branch" or "multi-branch".
	ChannelType string `toml:"channel_type"`

	// StoragePath is the directory a boltstore.Transport (if used) opens
	// its database file under.
	StoragePath string `toml:"storage_path,omitempty"`
}

// Load reads and parses a Config from a TOML file at path, matching the
// teacher's toml.DecodeFile usage throughout cmd/drand-cli.
func Load(path string) (*Config, error) {
	cfg := new(Config)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating or truncating the file.
func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// ParseChannelType maps the config's string form to a user.ChannelType.
func (c *Config) ParseChannelType() (user.ChannelType, error) {
	switch c.ChannelType {
	case "", "single-branch":
		return user.SingleBranch, nil
	case "multi-branch":
		return user.MultiBranch, nil
	default:
		return 0, ErrBadChannelType
	}
}

// ChannelTypeString renders ct in the config file's string form.
func ChannelTypeString(ct user.ChannelType) string {
	switch ct {
	case user.MultiBranch:
		return "multi-branch"
	default:
		return "single-branch"
	}
}

// ParseAddress decodes ChannelAddress, returning the zero Address and no
// error if it is empty (not yet announced).
func (c *Config) ParseAddress() (message.Address, error) {
	if c.ChannelAddress == "" {
		return message.Address{}, nil
	}
	buf, err := hex.DecodeString(c.ChannelAddress)
	if err != nil || len(buf) != message.AppInstSize+message.NonceSize {
		return message.Address{}, message.ErrBadAddress
	}
	var a message.Address
	copy(a.AppInst[:], buf[:message.AppInstSize])
	copy(a.Nonce[:], buf[message.AppInstSize:])
	return a, nil
}
