package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spigell/scout-responder/internal/bizreach"
	"github.com/spigell/scout-responder/internal/logger"
	"github.com/spigell/scout-responder/internal/secrets"
	"github.com/spigell/scout-responder/internal/surface"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Log in to BizReach and save the session for later runs",
	Run: func(_ *cobra.Command, _ []string) {
		auth()
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func auth() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if err := login(ctx, config, logger); err != nil {
		logger.Fatal("saving session", zap.Error(err))
	}
}

// login opens a visible browser on the login page and saves whatever session
// it holds once the login is over. The state is saved even when the
// automated login times out, since the operator may have finished it by hand.
func login(ctx context.Context, config *Config, logger *zap.Logger) error {
	browser, err := surface.NewChromeBrowser(ctx, surface.ChromeOptions{
		UserAgent:     config.Browser.UserAgent,
		ExecPath:      config.Browser.ExecPath,
		ActionTimeout: config.Browser.ActionTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer browser.Close()

	page, err := browser.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("opening a page: %w", err)
	}

	loginURL := config.Site.LoginURL()
	logger.Info("opening login page", zap.String("url", loginURL))
	if err := page.Navigate(ctx, loginURL); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}

	password, err := secrets.LoadOptional(secrets.Source{
		Name:  "bizreach password",
		Value: config.Account.Password,
		File:  config.Account.PasswordFile,
	})
	if err != nil {
		return err
	}

	creds := bizreach.Credentials{Email: config.Account.Email, Password: password}
	if creds.Complete() {
		logger.Info("credentials found, attempting automated login")
		if err := bizreach.Login(ctx, page, creds, config.Browser.LoginTimeout, logger); err != nil {
			logger.Warn("automated login did not finish", zap.Error(err))
			surface.NewDumper(config.DumpDir, logger).Dump(ctx, page, "debug_auth_failure")
		}
	} else {
		logger.Info("BIZREACH_EMAIL or BIZREACH_PASSWORD not set, log in manually in the opened browser")
		prompt := promptui.Prompt{
			Label: "Press ENTER once the dashboard or the search page is shown",
		}
		if _, err := prompt.Run(); err != nil {
			return fmt.Errorf("waiting for manual login: %w", err)
		}
	}

	cookies, err := browser.SaveState(config.AuthFile)
	if err != nil {
		return err
	}
	logger.Info("session saved", zap.String("file", config.AuthFile), zap.Int("cookies", cookies))

	return nil
}
