package yespay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	pubnub "github.com/pubnub/go/v7"
	"github.com/shopspring/decimal"

	"checkout-system/internal/providers"
	"checkout-system/internal/status"
	"checkout-system/models"
)

type Config struct {
	ClientConfig `mapstructure:",squash"`

	PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
	PNSubSecret string `json:"pn_subsecret" mapstructure:"pn_subsecret"`
	PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
	PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`
	PNCipherKey string `json:"pn_cipherKey" mapstructure:"pn_cipherkey"`
}

// Yespay is the YesPay payment integration: an HTTP API for sessions and
// tokens plus a PubNub channel on which the bank pushes a notification when
// the user finishes the payment UI.
type Yespay struct {
	clientKey string

	pn       *pubnub.PubNub
	listener *pubnub.Listener

	client *Client

	txCh chan *status.Transaction
}

// New connects to the YesPay backend and subscribes to its notification
// channel.
func New(ctx context.Context, cfg *Config) (*Yespay, error) {
	client := newClient(ctx, &cfg.ClientConfig)

	// Connect to the YesPay backend. Get access token.
	token, err := client.connect(ctx)
	if err != nil {
		return nil, err
	}
	client.setAccessToken(token)

	// Notify access token expired.
	go client.notifyAccessTokenExpired(ctx)

	y := &Yespay{
		clientKey: cfg.ClientKey,
		client:    client,
		listener:  pubnub.NewListener(),
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PNUUID))
	pnCfg.SubscribeKey = cfg.PNSubKey
	pnCfg.CipherKey = cfg.PNCipherKey
	pnCfg.SecretKey = cfg.PNSubSecret

	y.pn = pubnub.NewPubNub(pnCfg)
	y.pn.AddListener(y.listener)

	go y.processSubscription(ctx)

	y.pn.Subscribe().
		Channels([]string{cfg.PNChannel}).
		Execute()

	return y, nil
}

func (y *Yespay) Name() string { return "yespay" }

// SetTransactionChannel installs the channel that receives bank-side
// transaction notifications.
func (y *Yespay) SetTransactionChannel(ch chan *status.Transaction) {
	y.txCh = ch
}

type sessionHandle struct {
	id     string
	client *Client
}

func (h *sessionHandle) ID() string { return h.id }

func (h *sessionHandle) Complete(ctx context.Context, success bool) error {
	return h.client.completeSession(ctx, h.id, success)
}

func (y *Yespay) CreateCapabilityHandle(ctx context.Context, quote *models.OrderQuote, reference string) (providers.CapabilityHandle, error) {
	sessionID, err := y.client.createSession(ctx, quote.Total, quote.Currency, reference)
	if err != nil {
		return nil, err
	}
	return &sessionHandle{id: sessionID, client: y.client}, nil
}

func (y *Yespay) CanPay(ctx context.Context, handle providers.CapabilityHandle) (bool, error) {
	return y.client.capability(ctx, handle.ID())
}

func (y *Yespay) CreateToken(ctx context.Context, card models.CardDetails) (*models.Token, error) {
	ref, err := randomNumber()
	if err != nil {
		return nil, err
	}

	token, err := y.client.createToken(ctx, map[string]any{
		"holder_name": card.HolderName,
		"number":      card.Number,
		"exp_month":   card.ExpMonth,
		"exp_year":    card.ExpYear,
		"cvc":         card.CVC,
		"request_ref": ref,
	})
	if err != nil {
		return nil, err
	}

	return &models.Token{ID: token, Method: "card"}, nil
}

func (y *Yespay) Close(_ context.Context) error {
	y.pn.UnsubscribeAll()
	return nil
}

// notification is the wire shape of one bank-side push message.
type notification struct {
	RefID     string          `json:"refNo"`
	UUID      string          `json:"billNumber"`
	Token     string          `json:"paymentToken"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"txnAmount"`
	Currency  string          `json:"sourceCurrency"`
	Auth      string          `json:"auth"`
	CreatedAt string          `json:"txnDateTime"`
}

func (y *Yespay) processSubscription(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case st := <-y.listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to pubnub")
			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to pubnub")
			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from pubnub")
			default:
				log.Printf("pubnub status category: %v", st.Category)
			}

		case message := <-y.listener.Message:
			y.handleMessage(message)
		}
	}
}

func (y *Yespay) handleMessage(message *pubnub.PNMessage) {
	data, ok := message.Message.(map[string]interface{})
	if !ok {
		return
	}

	jsonData, _ := json.Marshal(data)
	var n notification
	if err := json.Unmarshal(jsonData, &n); err != nil {
		log.Printf("Error parsing yespay notification: %v", err)
		return
	}

	// Notifications carry a bcrypt hash of the shared client key; anything
	// else on the channel is ignored.
	if !CompareHash([]byte(n.Auth), []byte(y.clientKey)) {
		log.Printf("Dropping yespay notification %s: bad auth", n.UUID)
		return
	}

	if y.txCh == nil {
		log.Println("Dropping yespay notification: no transaction channel")
		return
	}

	tx := &status.Transaction{
		UUID:      n.UUID,
		RefID:     n.RefID,
		Token:     n.Token,
		Status:    n.Status,
		Amount:    n.Amount,
		Currency:  n.Currency,
		Timestamp: time.Now(),
	}

	select {
	case y.txCh <- tx:
	default:
		log.Printf("Dropping yespay notification %s: transaction channel full", fmt.Sprintf("%s/%s", n.UUID, n.RefID))
	}
}
