package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/infrastructure/providers"
	"github.com/soulscout/soulscout/internal/metrics"
	"github.com/soulscout/soulscout/internal/models"
	"github.com/soulscout/soulscout/internal/persistence/postgres"
)

const commandGroup = "portfolio"

type walletRegistry interface {
	Add(ctx context.Context, address, label string, addedBy int64) error
	Remove(ctx context.Context, address string) (bool, error)
	List(ctx context.Context) ([]postgres.Wallet, error)
}

type accountsFetcher interface {
	TokenAccountsByOwner(ctx context.Context, owner string) ([]providers.TokenAccount, error)
}

type snapshotArchiver interface {
	Save(ctx context.Context, s postgres.Snapshot, holdings []postgres.HoldingValue) (int64, error)
}

// Service answers portfolio commands from the shared request stream
// under its own consumer group.
type Service struct {
	bus      bus.Bus
	wallets  walletRegistry
	rpc      accountsFetcher
	oracle   *Oracle
	valuator *Valuator
	meta     *MetadataCache
	archive  snapshotArchiver
	metrics  *metrics.Registry
	cfg      config.Config
	consumer string
}

// NewService wires the consumer. archive may be nil to skip snapshot
// history.
func NewService(b bus.Bus, wallets walletRegistry, rpc accountsFetcher, oracle *Oracle,
	valuator *Valuator, meta *MetadataCache, archive snapshotArchiver,
	reg *metrics.Registry, cfg config.Config) *Service {
	return &Service{
		bus:      b,
		wallets:  wallets,
		rpc:      rpc,
		oracle:   oracle,
		valuator: valuator,
		meta:     meta,
		archive:  archive,
		metrics:  reg,
		cfg:      cfg,
		consumer: "portfolio-" + uuid.New().String()[:8],
	}
}

// Run blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.bus.CreateGroup(ctx, s.cfg.StreamRequests, commandGroup); err != nil {
		return err
	}
	log.Info().Str("consumer", s.consumer).Msg("portfolio loop started")

	block := time.Duration(s.cfg.BlockMs) * time.Millisecond
	for ctx.Err() == nil {
		msgs, err := s.bus.Read(ctx, s.cfg.StreamRequests, commandGroup, s.consumer, 10, block)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if s.metrics != nil {
				s.metrics.BusErrors.WithLabelValues("portfolio", "read").Inc()
			}
			log.Error().Err(err).Msg("command stream read failed")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			s.dispatch(ctx, msg)
			// Commands are acked regardless of outcome; failures surface
			// to the user as ok:false replies.
			s.ack(ctx, msg.ID)
		}
	}

	log.Info().Msg("portfolio loop stopped")
	return ctx.Err()
}

func (s *Service) dispatch(ctx context.Context, msg bus.Message) {
	var cmd models.Command
	if err := msg.Decode(&cmd); err != nil {
		log.Warn().Str("id", msg.ID).Err(err).Msg("dropping malformed command")
		return
	}

	var reply models.Reply
	switch cmd.Cmd {
	case "balance":
		reply = s.handleBalance(ctx, cmd)
	case "holdings":
		reply = s.handleHoldings(ctx, cmd)
	case "add_wallet":
		reply = s.handleAddWallet(ctx, cmd)
	case "remove_wallet":
		reply = s.handleRemoveWallet(ctx, cmd)
	default:
		// Another consumer group owns this command.
		return
	}

	reply.CorrID = cmd.CorrID
	reply.Ts = models.NowISO8601()
	if _, err := s.bus.Append(ctx, s.cfg.StreamReplies, reply); err != nil {
		log.Error().Err(err).Str("corr_id", cmd.CorrID).Msg("publish reply failed")
		if s.metrics != nil {
			s.metrics.BusErrors.WithLabelValues("portfolio", "append").Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.UpdatesProcessed.WithLabelValues("portfolio", "ok").Inc()
	}
	log.Info().Str("cmd", cmd.Cmd).Int64("user", cmd.From.TgUserID).Msg("command processed")
}

func (s *Service) handleBalance(ctx context.Context, cmd models.Command) models.Reply {
	summary, err := s.valuePortfolio(ctx)
	if err != nil {
		return models.Reply{OK: false, Message: err.Error()}
	}

	s.saveSnapshot(ctx, summary)

	msg := fmt.Sprintf(
		"\U0001F4BC Portfolio Balance\n\nTotal: $%.2f USD\nAssets: %d included\n",
		summary.TotalUSD, summary.IncludedCount)
	if summary.Notes != "" {
		msg += summary.Notes + "\n"
	}
	msg += "Updated: " + strings.TrimSuffix(models.NowISO8601(), "Z")

	return models.Reply{
		OK:      true,
		Message: msg,
		Data: map[string]any{
			"total_usd":      summary.TotalUSD,
			"included_count": summary.IncludedCount,
			"excluded_count": summary.ExcludedCount,
		},
	}
}

func (s *Service) handleHoldings(ctx context.Context, cmd models.Command) models.Reply {
	limit := 10
	if v, ok := cmd.Args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	summary, err := s.valuePortfolio(ctx)
	if err != nil {
		return models.Reply{OK: false, Message: err.Error()}
	}

	var b strings.Builder
	b.WriteString("\U0001F4CA Top Holdings\n\n")
	for i, h := range summary.Holdings {
		if i >= limit {
			break
		}
		if h.Priced {
			fmt.Fprintf(&b, "%d. %s - %.4f ($%.2f)\n", i+1, h.Symbol, h.Amount, h.USDValue)
		} else {
			fmt.Fprintf(&b, "%d. %s - %.4f (N/A)\n", i+1, h.Symbol, h.Amount)
		}
	}
	if len(summary.Holdings) > limit {
		fmt.Fprintf(&b, "\n+ %d more...", len(summary.Holdings)-limit)
	}

	return models.Reply{OK: true, Message: b.String()}
}

// valuePortfolio fetches, prices and aggregates holdings across every
// registered wallet. A single failing wallet degrades the answer rather
// than failing it.
func (s *Service) valuePortfolio(ctx context.Context) (Summary, error) {
	wallets, err := s.wallets.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("wallet list failed")
		return Summary{}, errors.New("Could not read the wallet registry. Try again.")
	}
	if len(wallets) == 0 {
		return Summary{}, errors.New("No wallets configured. Owner: use /add_wallet <address>")
	}

	var all []Holding
	failed := 0
	for _, w := range wallets {
		accounts, err := s.rpc.TokenAccountsByOwner(ctx, w.Address)
		if err != nil {
			log.Error().Err(err).Str("wallet", shortAddr(w.Address)).Msg("token accounts fetch failed")
			failed++
			continue
		}
		for _, ta := range accounts {
			meta := s.meta.Lookup(ta.Mint)
			h := Holding{Mint: ta.Mint, Symbol: meta.Symbol, Amount: ta.Amount}
			s.oracle.Price(ctx, &h)
			all = append(all, h)
		}
	}

	if failed == len(wallets) {
		return Summary{}, errors.New("Could not fetch holdings from any wallet. Try again.")
	}
	return s.valuator.Value(all), nil
}

func (s *Service) saveSnapshot(ctx context.Context, summary Summary) {
	if s.archive == nil {
		return
	}

	rows := make([]postgres.HoldingValue, 0, len(summary.Holdings))
	for _, h := range summary.Holdings {
		rows = append(rows, postgres.HoldingValue{
			Mint:     h.Mint,
			Symbol:   h.Symbol,
			Amount:   h.Amount,
			USDPrice: h.USDPrice,
			USDValue: h.USDValue,
			Tag:      h.Tag,
		})
	}

	_, err := s.archive.Save(ctx, postgres.Snapshot{
		TotalUSD:           summary.TotalUSD,
		IncludedCount:      summary.IncludedCount,
		ExcludedCount:      summary.ExcludedCount,
		HaircutSubtotalUSD: summary.HaircutSubtotalUSD,
		Notes:              summary.Notes,
	}, rows)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot save failed")
	}
}

func (s *Service) handleAddWallet(ctx context.Context, cmd models.Command) models.Reply {
	if cmd.From.Role != "owner" {
		return models.Reply{OK: false, Message: "Only owner can add wallets."}
	}
	address, _ := cmd.Args["address"].(string)
	if address == "" {
		return models.Reply{OK: false, Message: "Usage: /add_wallet <address>"}
	}
	if !validSolanaAddress(address) {
		return models.Reply{OK: false, Message: "Invalid Solana address format."}
	}

	if err := s.wallets.Add(ctx, address, "", cmd.From.TgUserID); err != nil {
		if errors.Is(err, postgres.ErrWalletExists) {
			return models.Reply{OK: false, Message: "Wallet is already tracked."}
		}
		log.Error().Err(err).Msg("wallet add failed")
		return models.Reply{OK: false, Message: "Could not add the wallet. Try again."}
	}

	s.audit(ctx, "wallet_added", cmd.From.TgUserID, "wallet="+address)
	return models.Reply{OK: true, Message: "✅ Wallet added: " + shortAddr(address)}
}

func (s *Service) handleRemoveWallet(ctx context.Context, cmd models.Command) models.Reply {
	if cmd.From.Role != "owner" {
		return models.Reply{OK: false, Message: "Only owner can remove wallets."}
	}
	address, _ := cmd.Args["address"].(string)
	if address == "" {
		return models.Reply{OK: false, Message: "Usage: /remove_wallet <address>"}
	}

	found, err := s.wallets.Remove(ctx, address)
	if err != nil {
		log.Error().Err(err).Msg("wallet remove failed")
		return models.Reply{OK: false, Message: "Could not remove the wallet. Try again."}
	}
	if !found {
		return models.Reply{OK: false, Message: "Wallet is not tracked."}
	}

	s.audit(ctx, "wallet_removed", cmd.From.TgUserID, "wallet="+address)
	return models.Reply{OK: true, Message: "✅ Wallet removed: " + shortAddr(address)}
}

func (s *Service) audit(ctx context.Context, kind string, actor int64, detail string) {
	ev := models.AuditEvent{
		Kind:   kind,
		Actor:  fmt.Sprintf("tg:%d", actor),
		Detail: detail,
		Ts:     models.NowISO8601(),
	}
	if _, err := s.bus.Append(ctx, s.cfg.StreamAudit, ev); err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("audit publish failed")
	}
}

func (s *Service) ack(ctx context.Context, id string) {
	if err := s.bus.Ack(ctx, s.cfg.StreamRequests, commandGroup, id); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("ack failed; message will be redelivered")
	}
}

func shortAddr(address string) string {
	if len(address) <= 8 {
		return address
	}
	return address[:8] + "..."
}

// validSolanaAddress is a shape check: base58 alphabet, 32-44 chars.
func validSolanaAddress(address string) bool {
	if len(address) < 32 || len(address) > 44 {
		return false
	}
	for _, c := range address {
		switch {
		case c >= '1' && c <= '9':
		case c >= 'A' && c <= 'H':
		case c >= 'J' && c <= 'N':
		case c >= 'P' && c <= 'Z':
		case c >= 'a' && c <= 'k':
		case c >= 'm' && c <= 'z':
		default:
			return false
		}
	}
	return true
}
