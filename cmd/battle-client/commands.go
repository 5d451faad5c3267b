package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/radieske/battle-memecoin-club/internal/betting"
	"github.com/radieske/battle-memecoin-club/internal/shared/config"
	"github.com/radieske/battle-memecoin-club/internal/shared/metrics"
	"github.com/radieske/battle-memecoin-club/internal/wallet"
	"github.com/radieske/battle-memecoin-club/pkg/apperr"
)

type command func(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics, args []string) error

var commands = map[string]command{
	"signin":  signIn,
	"bet":     placeBet,
	"status":  status,
	"balance": balance,
	"signout": signOut,
}

// promptApprove pergunta no terminal antes de cada assinatura, como a extensão faria
func promptApprove(in io.Reader, out io.Writer) wallet.ApproveFunc {
	r := bufio.NewReader(in)
	return func(_ context.Context, kind string) bool {
		fmt.Fprintf(out, "approve %s signature? [y/N] ", kind)
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

func approver(confirm bool) wallet.ApproveFunc {
	if confirm {
		return promptApprove(os.Stdin, os.Stdout)
	}
	return nil
}

func signIn(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("signin", flag.ContinueOnError)
	confirm := fs.Bool("confirm", false, "ask before signing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log, m, approver(*confirm))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.auth.Connect(ctx, a.wallet); err != nil {
		return err
	}
	if sess, ok := a.auth.Session(); ok {
		fmt.Printf("already signed in as %s (user %s)\n", sess.User.Username, sess.User.ID)
		return nil
	}

	sess, err := a.auth.SignIn(ctx)
	switch {
	case apperr.HasCode(err, apperr.CodeSignatureRejected):
		fmt.Println("sign-in cancelled")
		return nil
	case err != nil:
		return err
	case sess == nil:
		return errors.New("sign-in already in progress")
	}
	fmt.Printf("signed in as %s (user %s, wallet %s)\n", sess.User.Username, sess.User.ID, sess.WalletAddress)
	return nil
}

func placeBet(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("bet", flag.ContinueOnError)
	fighter := fs.String("fighter", "", "fighter (memecoin) name")
	amount := fs.Float64("amount", 0, "amount in SOL")
	matchID := fs.String("match", "", "match id; default is the backend's active match")
	account := fs.String("account", "", "match account (base58); derived from the match id when empty")
	confirm := fs.Bool("confirm", false, "ask before signing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fighter == "" {
		return errors.New("-fighter is required")
	}

	a, err := newApp(ctx, cfg, log, m, approver(*confirm))
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.session(ctx); err != nil {
		return err
	}
	match, err := a.activeMatch(ctx, *matchID, *account)
	if err != nil {
		return err
	}
	fmt.Printf("betting %.4f SOL on %s in match %s\n", *amount, *fighter, match.ID)

	final, err := a.orchestrator.SubmitBet(ctx, *fighter, *amount, func(u betting.Update) {
		if u.Status == betting.StatusProcessing {
			fmt.Println("processing...")
		}
	})
	if err != nil {
		return err
	}

	switch final.Status {
	case betting.StatusConfirmed:
		fmt.Printf("bet placed: id %s, tx %s\n", final.BetID, final.Signature)
		fmt.Println("waiting for on-chain confirmation...")
		a.waitConfirmations(ctx)
		return nil
	case betting.StatusCancelled:
		fmt.Println("transaction cancelled")
		return nil
	case betting.StatusAlreadyBet:
		fmt.Println("you have already placed a bet on this match")
		return nil
	}
	if final.Signature != "" {
		fmt.Printf("transaction %s reached the chain but the bet was not saved\n", final.Signature)
	}
	return fmt.Errorf("bet failed: %s", final.Reason)
}

func status(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics, args []string) error {
	a, err := newApp(ctx, cfg, log, m, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("wallet:   %s\n", a.wallet.PublicKey())
	fmt.Printf("rpc:      %s\n", a.pool.Current().Label)

	if err := a.auth.Connect(ctx, a.wallet); err != nil {
		fmt.Printf("session:  %s (%v)\n", a.auth.State(), err)
	} else if sess, ok := a.auth.Session(); ok {
		fmt.Printf("session:  signed in as %s (user %s)\n", sess.User.Username, sess.User.ID)
	} else {
		fmt.Printf("session:  %s\n", a.auth.State())
	}

	match, ok, err := a.matches.Refresh(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("match:    none active")
		return nil
	}
	fmt.Printf("match:    %s [%s] fighters=%s account=%s\n", match.ID, match.Status, strings.Join(match.Fighters, ","), match.Account)

	summary, err := a.matches.Summary(ctx)
	if err != nil {
		log.Warn("load match summary", zap.Error(err))
	} else {
		fmt.Printf("pool:     %.4f SOL in %d bets\n", summary.TotalPool, summary.TotalBets)
		for _, f := range summary.Fighters {
			fmt.Printf("  %-12s %.4f SOL (%d bets)\n", f.FighterName, f.TotalAmount, f.BetCount)
		}
	}

	if !a.auth.IsAuthenticated() {
		return nil
	}
	bet, err := a.positions.Refresh(ctx)
	switch {
	case err != nil:
		log.Warn("load current bet", zap.Error(err))
	case bet == nil:
		fmt.Println("your bet: none")
	default:
		fmt.Printf("your bet: %.4f SOL on %s [%s] tx %s\n", bet.Amount, bet.FighterName, bet.Status, bet.TransactionSignature)
	}
	return nil
}

func balance(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "keep polling until interrupted")
	mint := fs.String("mint", "", "only this SPL mint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log, m, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	owner := a.wallet.PublicKey()
	var mintKey *solana.PublicKey
	if *mint != "" {
		pk, err := solana.PublicKeyFromBase58(*mint)
		if err != nil {
			return fmt.Errorf("invalid -mint: %w", err)
		}
		mintKey = &pk
	}

	tokens, err := a.pool.GetTokenBalances(ctx, owner, mintKey)
	if err != nil {
		log.Warn("load token balances", zap.Error(err))
	}
	for _, t := range tokens {
		fmt.Printf("token %s: %s\n", t.Mint, t.UIAmount)
	}

	poller := betting.NewBalancePoller(a.pool, cfg.BalancePollInterval, func(b betting.Balance) {
		fmt.Printf("%s  %.9f SOL\n", b.At.Format("15:04:05"), b.SOL())
	}, log)

	if !*watch {
		_, err := poller.Refresh(ctx, owner)
		return err
	}
	poller.Run(ctx, func() (solana.PublicKey, bool) { return owner, true })
	return nil
}

func signOut(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics, args []string) error {
	a, err := newApp(ctx, cfg, log, m, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}
