// Command demo publishes a few messages on a channel and reads them back.
//
// Without --ledger the demo runs against an in-memory ledger. With it, the
// messages are attached to a running ledger node and stay readable from the
// printed root.
//
// # Usage
//
//	go run ./cmd/demo
//	go run ./cmd/demo --ledger=http://localhost:7900 --mode=restricted --key=VERYSECRETKEY
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/flashbots/mamchan/cmd/common"
	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/protocol"
)

type person struct {
	Name string `json:"name"`
}

func main() {
	var (
		ledgerURL = flag.String("ledger", "", "Ledger node URL (empty for in-memory)")
		modeName  = flag.String("mode", "restricted", "Channel mode (public, private, restricted)")
		key       = flag.String("key", "VERYSECRETKEY", "Side key for restricted mode")
		security  = flag.Int("security", protocol.DefaultSecurity, "Channel security level")
		epochSize = flag.Uint("epoch-size", 1, "Leaves per epoch")
		seed      = flag.String("seed", "", "Channel seed passphrase (empty for random)")
	)
	flag.Parse()

	if err := run(*ledgerURL, *modeName, *key, *security, uint32(*epochSize), *seed); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ledgerURL, modeName, key string, security int, epochSize uint32, passphrase string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	mode, err := protocol.ParseMode(modeName)
	if err != nil {
		return err
	}

	cfg := &protocol.ChannelConfig{Security: security, EpochSize: epochSize}
	if passphrase != "" {
		seed := crypto.SeedFromPassphrase(passphrase)
		cfg.Seed = &seed
	}
	ch, err := protocol.NewChannel(cfg)
	if err != nil {
		return err
	}

	var sideKey []byte
	if mode == protocol.Restricted {
		sideKey = []byte(key)
	}
	if err := ch.SetMode(mode, sideKey); err != nil {
		return err
	}

	transport := common.NewTransport(ledgerURL)
	pub := &protocol.Publisher{Channel: ch, Transport: transport}

	var first *protocol.EncodedMessage
	for _, name := range []string{"Alice", "Bob", "Charlie"} {
		msg, err := protocol.PublishMessage(ctx, pub, &person{Name: name})
		if err != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}
		if first == nil {
			first = msg
		}
		fmt.Printf("Published %-8s root=%s leaf=%d\n", name, msg.Root, msg.LeafIndex)
	}

	readKey, err := readerKey(mode, sideKey)
	if err != nil {
		return err
	}

	reader := protocol.NewReader(&protocol.ReaderConfig{Transport: transport})
	fmt.Printf("\nReading %s channel from %s\n", mode, first.Root)
	res, err := reader.Fetch(ctx, first.Root, mode, readKey, func(body []byte) {
		p, err := protocol.UnmarshalMessage[person](body)
		if err != nil {
			fmt.Printf("  undecodable message: %v\n", err)
			return
		}
		fmt.Printf("  received %s\n", p.Name)
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nRead %d messages, next root %s\n", len(res.Messages), res.NextRoot)
	return nil
}

func readerKey(mode protocol.Mode, sideKey []byte) (crypto.SideKey, error) {
	if mode != protocol.Restricted {
		return crypto.SideKey{}, nil
	}
	return crypto.NewSideKey(sideKey)
}
