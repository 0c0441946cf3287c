package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"anchor-studio/chain"
	"anchor-studio/config"
	"anchor-studio/form"
	"anchor-studio/idl"
	"anchor-studio/logger"
	"anchor-studio/session"
	"anchor-studio/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const configFileName = "config.yaml"

var errNoProgram = errors.New("no program configured, run setup first")

// app is what every command runs against.
type app struct {
	cfg     *config.Config
	cfgPath string
	log     *zap.Logger
	store   storage.Store
	session *session.Reconciler
	asker   form.Asker
}

func newApp() (*app, error) {
	path := cfgFile
	if path == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, configFileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogConf.Level = logLevel
	}

	log, err := logger.New(cfg.LogConf.ToLogOption())
	if err != nil {
		return nil, err
	}

	dir := cfg.Storage.Dir
	if dir == "" {
		if dir, err = config.DefaultDir(); err != nil {
			return nil, err
		}
	}
	store, err := storage.Open(cfg.Storage.Backend, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	connect := func(ctx context.Context, url string, commitment rpc.CommitmentType) (*chain.Client, error) {
		return chain.Connect(ctx, url, commitment, log)
	}
	sess, err := session.New(store, connect)
	if err != nil {
		store.Close()
		return nil, err
	}
	log.Debug("session restored",
		zap.String("config", path),
		zap.String("storage", cfg.Storage.Backend),
		zap.Stringer("state", sess.State()),
	)

	return &app{
		cfg:     cfg,
		cfgPath: path,
		log:     log,
		store:   store,
		session: sess,
		asker:   form.SurveyAsker{},
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close storage", zap.Error(err))
	}
	_ = a.log.Sync()
}

// withApp adapts a command body to cobra. The context is cancelled on
// interrupt so pending RPC calls return.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return fn(ctx, a, args)
	}
}

func (a *app) walletPath() (string, error) {
	if a.cfg.Wallet != "" {
		return a.cfg.Wallet, nil
	}
	return chain.DefaultWalletPath()
}

// loadWallet loads the local keypair, creating one on first use.
func (a *app) loadWallet() (*chain.KeypairWallet, error) {
	path, err := a.walletPath()
	if err != nil {
		return nil, err
	}
	wallet, created, err := chain.LoadOrCreateWallet(path)
	if err != nil {
		return nil, err
	}
	if created {
		a.log.Info("created wallet", zap.String("path", path))
		fmt.Println(titleStyle.Render("🔑 Created a new wallet"))
		fmt.Println(field("Address", wallet.PublicKey()))
		fmt.Println(field("Keypair", path))
	}
	return wallet, nil
}

// live returns the live program, binding the local wallet if the session
// is not live yet.
func (a *app) live(ctx context.Context) (*session.Handle, error) {
	if h, err := a.session.Handle(); err == nil {
		return h, nil
	}
	if a.session.State() == session.Empty {
		return nil, errNoProgram
	}
	wallet, err := a.loadWallet()
	if err != nil {
		return nil, err
	}
	fmt.Println(promptStyle.Render("Connecting to " + a.session.Config().RPCURL + "..."))
	h, err := a.session.WalletAvailable(ctx, wallet)
	if err != nil {
		a.log.Warn("session not live", zap.Error(err))
		return nil, err
	}
	a.log.Debug("session live",
		zap.String("program", h.ProgramID.String()),
		zap.String("wallet", wallet.PublicKey().String()),
	)
	return h, nil
}

// program returns the configured schema and address without connecting.
func (a *app) program() (*idl.Schema, solana.PublicKey, *storage.ProgramConfig, error) {
	if h, err := a.session.Handle(); err == nil {
		return h.Schema, h.ProgramID, &h.Config, nil
	}
	cfg := a.session.Config()
	if cfg == nil {
		return nil, solana.PublicKey{}, nil, errNoProgram
	}
	schema, err := idl.Parse([]byte(cfg.SerializedIDL))
	if err != nil {
		return nil, solana.PublicKey{}, nil, err
	}
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, solana.PublicKey{}, nil, err
	}
	return schema, programID, cfg, nil
}

func printErr(err error) {
	fmt.Println(warningStyle.Render("❌ " + err.Error()))
}
