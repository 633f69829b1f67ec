// Package app wires configuration, storage, the Discord adapter and the
// verification services into one lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"verifybot/internal/auditfile"
	"verifybot/internal/config"
	"verifybot/internal/discord"
	"verifybot/internal/notify"
	"verifybot/internal/store"
	"verifybot/internal/verify"
	logx "verifybot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	st      store.Store
	adapter *discord.Adapter
	notif   *notify.Notifier
	svc     *verify.Service

	mu   sync.Mutex
	cron *cron.Cron

	watchCancel context.CancelFunc
	wg          sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logCfg(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	adapter, err := discord.New(discord.Config{
		Token:     cfg.EffectiveToken(),
		GuildID:   cfg.Discord.GuildID,
		ModRoleID: cfg.Discord.ModRoleID,
	}, log.With(logx.String("comp", "discord")))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	notif := notify.New(st, adapter, notify.Options{
		RatePerSec: cfg.Summary.RatePerSec,
	}, log.With(logx.String("comp", "notify")))

	var audit verify.AuditAppender = nopAudit{}
	if cfg.Audit.Enabled {
		audit = auditfile.New(cfg.AuditDir(), log.With(logx.String("comp", "audit")))
	}

	svc, err := verify.New(verify.Config{
		VerifiedRoleID:   cfg.Discord.VerifiedRoleID,
		UnverifiedRoleID: cfg.Discord.UnverifiedRoleID,
	}, adapter, st, notif, audit, log.With(logx.String("comp", "verify")))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	handler := discord.NewHandler(svc, st, notif, cfg.Discord.ModRoleID,
		log.With(logx.String("comp", "handler")))
	handler.Attach(adapter)

	return &App{
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		st:      st,
		adapter: adapter,
		notif:   notif,
		svc:     svc,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	if err := a.adapter.Open(); err != nil {
		return err
	}
	if err := a.adapter.RegisterCommands(); err != nil {
		_ = a.adapter.Close()
		return err
	}

	cfg := a.cfgm.Get()
	a.applySummarySchedule(cfg.Summary.Schedule)

	// Watch the config file; reapply logging and schedule on change.
	wctx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	sub := a.cfgm.Subscribe(1)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(wctx)
	}()
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-wctx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logCfg(cfg))
				a.applySummarySchedule(cfg.Summary.Schedule)
			}
		}
	}()

	a.log.Info("verifybot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
	}

	a.mu.Lock()
	if a.cron != nil {
		stopCtx := a.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		a.cron = nil
	}
	a.mu.Unlock()

	a.wg.Wait()

	err := a.adapter.Close()
	if cerr := a.st.Close(); err == nil {
		err = cerr
	}
	a.log.Info("verifybot stopped")
	_ = a.logs.Close()
	return err
}

// applySummarySchedule (re)installs the periodic summary refresh. An empty
// schedule disables the job.
func (a *App) applySummarySchedule(schedule string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cron != nil {
		a.cron.Stop()
		a.cron = nil
	}
	if schedule == "" {
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, a.refreshAllSummaries); err != nil {
		a.log.Warn("invalid summary schedule", logx.Err(err), logx.String("schedule", schedule))
		return
	}
	c.Start()
	a.cron = c
	a.log.Info("summary refresh scheduled", logx.String("schedule", schedule))
}

// refreshAllSummaries posts a summary to every guild with a configured log
// channel. Failures are already logged per guild by the notifier.
func (a *App) refreshAllSummaries() {
	ctx := context.Background()
	channels, err := a.st.LogChannels(ctx)
	if err != nil {
		a.log.Error("summary refresh: channel lookup failed", logx.Err(err))
		return
	}
	for guildID := range channels {
		if err := a.notif.RefreshSummary(ctx, guildID); err != nil {
			a.log.Warn("summary refresh failed", logx.Err(err), logx.String("guild", guildID))
		}
	}
}

func logCfg(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// nopAudit satisfies verify.AuditAppender when the audit file is disabled.
type nopAudit struct{}

func (nopAudit) Append(store.VerificationEvent, bool) error { return nil }
