// Command channels-cli is a urfave/cli/v2-based driver for Author and
// Subscriber operations, mirroring the teacher's cmd/drand-cli layout: one
// small main.go wiring global flags, a banner, and a table of subcommands
// that each open a config file, construct the right core object, and print
// a plain-text result to stdout. It is a demo/ops surface only; no
// protocol logic lives here.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/drand/channels/config"
	"github.com/drand/channels/content"
	"github.com/drand/channels/key"
	"github.com/drand/channels/log"
	"github.com/drand/channels/message"
	"github.com/drand/channels/metrics"
	"github.com/drand/channels/store/boltstore"
	"github.com/drand/channels/transport"
	"github.com/drand/channels/transport/memtransport"
	"github.com/drand/channels/user"
)

var version = "master"

func banner(w *cli.App) {
	fmt.Fprintf(w.Writer, "channels-cli %v\n", version)
}

var configFlag = &cli.StringFlag{
	Name:  "config",
	Value: "channels.toml",
	Usage: "Path to the TOML configuration file holding the seed, channel address and type.",
}

var storeFlag = &cli.StringFlag{
	Name:  "store",
	Usage: "Directory for a durable bbolt-backed transport. If empty, an in-memory transport is used (data does not survive the process).",
}

var metricsFlag = &cli.StringFlag{
	Name:  "metrics",
	Usage: "Launch a metrics server at the given (host:)port.",
}

func openTransport(c *cli.Context, lg log.Logger) (transport.Transport, error) {
	dir := c.String("store")
	if dir == "" {
		return memtransport.New(), nil
	}
	return boltstore.New(c.Context, lg, dir, nil)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String("config"))
}

func saveConfig(c *cli.Context, cfg *config.Config) error {
	return config.Save(c.String("config"), cfg)
}

var announceCmd = &cli.Command{
	Name:  "announce",
	Usage: "Create a channel: derive this process's identity from its configured seed and publish an Announcement.",
	Flags: []cli.Flag{configFlag, storeFlag, &cli.StringFlag{Name: "channel-type", Value: "single-branch"}},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		lg := log.DefaultLogger()
		tr, err := openTransport(c, lg)
		if err != nil {
			return err
		}
		ct, err := (&config.Config{ChannelType: c.String("channel-type")}).ParseChannelType()
		if err != nil {
			return err
		}
		author, err := user.NewAuthor(cfg.Seed, ct, tr, lg)
		if err != nil {
			return err
		}
		link, err := author.Announce(c.Context)
		if err != nil {
			return err
		}
		cfg.ChannelAddress = link.Address.String()
		cfg.ChannelType = config.ChannelTypeString(ct)
		if err := saveConfig(c, cfg); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "announced: %s\n", link.Address)
		return nil
	},
}

var subscribeCmd = &cli.Command{
	Name:  "subscribe",
	Usage: "Process the channel's Announcement (address read from --config) and send a Subscribe message.",
	Flags: []cli.Flag{configFlag, storeFlag},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		lg := log.DefaultLogger()
		tr, err := openTransport(c, lg)
		if err != nil {
			return err
		}
		addr, err := cfg.ParseAddress()
		if err != nil {
			return err
		}
		sub := user.NewSubscriber(cfg.Seed, tr, lg)
		annLink := message.Link{Address: addr, MsgID: message.AnnouncementMsgID(addr)}
		if _, err := sub.ProcessAnnouncement(c.Context, annLink); err != nil {
			return err
		}
		link, err := sub.Subscribe(c.Context)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "subscribed: %s\n", hex.EncodeToString(link.MsgID[:]))
		return nil
	},
}

var publishCmd = &cli.Command{
	Name:  "publish",
	Usage: "Publish a tagged packet as the Author on the current branch.",
	Flags: []cli.Flag{
		configFlag, storeFlag,
		&cli.StringFlag{Name: "public", Usage: "hex-encoded public payload"},
		&cli.StringFlag{Name: "masked", Usage: "hex-encoded masked payload"},
	},
	Action: func(c *cli.Context) error {
		pub, err := hex.DecodeString(c.String("public"))
		if err != nil {
			return err
		}
		masked, err := hex.DecodeString(c.String("masked"))
		if err != nil {
			return err
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		lg := log.DefaultLogger()
		tr, err := openTransport(c, lg)
		if err != nil {
			return err
		}
		ct, err := cfg.ParseChannelType()
		if err != nil {
			return err
		}
		addr, err := cfg.ParseAddress()
		if err != nil {
			return err
		}
		author, err := user.NewAuthorWithNonce(cfg.Seed, addr.Nonce, ct, tr, lg)
		if err != nil {
			return err
		}
		if _, err := author.Announce(c.Context); err != nil && !errors.Is(err, user.ErrAlreadyAnnounced) {
			return err
		}
		link, err := author.PublishTagged(c.Context, pub, masked)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "published: %s\n", hex.EncodeToString(link.MsgID[:]))
		return nil
	},
}

var syncCmd = &cli.Command{
	Name:  "sync",
	Usage: "Sync a Subscriber forward, printing every newly decoded message.",
	Flags: []cli.Flag{configFlag, storeFlag},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		lg := log.DefaultLogger()
		tr, err := openTransport(c, lg)
		if err != nil {
			return err
		}
		addr, err := cfg.ParseAddress()
		if err != nil {
			return err
		}
		sub := user.NewSubscriber(cfg.Seed, tr, lg)
		annLink := message.Link{Address: addr, MsgID: message.AnnouncementMsgID(addr)}
		if _, err := sub.ProcessAnnouncement(c.Context, annLink); err != nil {
			return err
		}
		decoded, err := sub.Sync(c.Context)
		if err != nil {
			return err
		}
		for _, d := range decoded {
			printDecoded(c, d)
		}
		return nil
	},
}

func printDecoded(c *cli.Context, d *user.Decoded) {
	switch m := d.Content.(type) {
	case *content.SignedPacket:
		fmt.Fprintf(c.App.Writer, "signed: public=%x masked=%x\n", m.PublicPayload, m.MaskedPayload)
	case *content.TaggedPacket:
		fmt.Fprintf(c.App.Writer, "tagged: public=%x masked=%x\n", m.PublicPayload, m.MaskedPayload)
	default:
		fmt.Fprintf(c.App.Writer, "message: %T at %s\n", m, hex.EncodeToString(d.Link.MsgID[:]))
	}
}

var identityCmd = &cli.Command{
	Name:  "identity",
	Usage: "Print this seed's ed25519/X25519 public identity.",
	Flags: []cli.Flag{configFlag},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		prng := key.NewPrng(cfg.Seed)
		priv := key.NewIdentity(prng.SeedKey())
		fmt.Fprintf(c.App.Writer, "ed25519: %s\nx25519: %s\n", priv.Public.String(), hex.EncodeToString(priv.Public.X25519PK[:]))
		return nil
	},
}

func main() {
	app := &cli.App{
		Name:  "channels-cli",
		Usage: "Drive Author/Subscriber operations of a channels messaging channel.",
		Flags: []cli.Flag{metricsFlag},
		Before: func(c *cli.Context) error {
			if bind := c.String("metrics"); bind != "" {
				metrics.Start(bind)
			}
			return nil
		},
		Commands: []*cli.Command{
			announceCmd,
			subscribeCmd,
			publishCmd,
			syncCmd,
			identityCmd,
		},
	}
	banner(app)
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
