// Package whatsapp delivers messages over a linked WhatsApp account.
// The session is persisted in a local sqlite store; first run pairs the
// account by printing a QR code to the terminal.
package whatsapp

import (
	"context"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
)

type Config struct {
	// DataDir holds the whatsmeow session database.
	DataDir string
	// DefaultCountryCode is prepended to national numbers that start
	// with 0, e.g. "90" for Turkey.
	DefaultCountryCode string
}

type Dispatcher struct {
	client *whatsmeow.Client
	cfg    Config
	log    zerolog.Logger
}

func NewDispatcher(ctx context.Context, cfg Config) (*Dispatcher, error) {
	logger := zerolog.New(os.Stdout).With().Str("component", "whatsapp").Logger()

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s/whatsmeow.db?_foreign_keys=on", cfg.DataDir), nil)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	return &Dispatcher{
		client: whatsmeow.NewClient(device, nil),
		cfg:    cfg,
		log:    logger,
	}, nil
}

// Connect brings the client online. An unpaired device blocks on the QR
// pairing flow until the code is scanned.
func (d *Dispatcher) Connect(ctx context.Context) error {
	if d.client.Store.ID != nil {
		return d.client.Connect()
	}

	qrChan, _ := d.client.GetQRChannel(ctx)
	if err := d.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	for evt := range qrChan {
		if evt.Event != "code" {
			d.log.Info().Str("event", evt.Event).Msg("pairing")
			continue
		}

		q, err := qrcode.New(evt.Code, qrcode.Medium)
		if err != nil {
			fmt.Printf("pairing code: %s\n", evt.Code)
			continue
		}

		fmt.Println("\n" + q.ToSmallString(false))
		fmt.Println("Scan with WhatsApp: Settings > Linked Devices > Link a Device")
	}

	return nil
}

func (d *Dispatcher) Close() {
	d.client.Disconnect()
}

// normalize reduces a phone to bare digits with a country code.
func (d *Dispatcher) normalize(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	p := b.String()

	if strings.HasPrefix(p, "0") && d.cfg.DefaultCountryCode != "" {
		p = d.cfg.DefaultCountryCode + p[1:]
	}

	return p
}

// Dispatch sends one text message. The number is verified against
// WhatsApp first; the verified JID is used for the send.
func (d *Dispatcher) Dispatch(ctx context.Context, phone, message string) error {
	number := d.normalize(phone)

	resp, err := d.client.IsOnWhatsApp(ctx, []string{number})
	if err != nil {
		return fmt.Errorf("verify %s: %w", number, err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return fmt.Errorf("number %s is not on whatsapp", number)
	}

	jid := resp[0].JID
	if jid.IsEmpty() {
		jid = types.NewJID(number, types.DefaultUserServer)
	}

	d.log.Debug().Str("jid", jid.String()).Msg("sending message")

	sent, err := d.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: &message,
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", jid.String(), err)
	}

	d.log.Info().Str("jid", jid.String()).Str("message_id", sent.ID).Msg("message sent")

	return nil
}
