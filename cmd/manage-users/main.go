package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-bulletin-api/internal/models"
	"github.com/noah-isme/campus-bulletin-api/internal/repository"
	"github.com/noah-isme/campus-bulletin-api/internal/service"
	"github.com/noah-isme/campus-bulletin-api/pkg/config"
	"github.com/noah-isme/campus-bulletin-api/pkg/database"
	"github.com/noah-isme/campus-bulletin-api/pkg/logger"
)

var (
	regID    string
	role     string
	password string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "manage-users",
		Short: "Campus bulletin account administration",
		Long:  `Provision default accounts, create users, reset passwords and apply database migrations.`,
	}

	rootCmd.AddCommand(
		newSeedCommand(),
		newCreateCommand(),
		newSetPasswordCommand(),
		newMigrateCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or reset the default teacher1 and student1 accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := initEnv()
			if err != nil {
				return err
			}
			defer env.close()

			pw := password
			if pw == "" {
				pw = env.cfg.Seed.Password
			}
			if err := env.users.SeedDefaults(cmd.Context(), pw); err != nil {
				return err
			}
			for _, def := range service.DefaultUsers {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) ready\n", def.RegID, def.Role)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for the default accounts (default: SEED_PASSWORD)")
	return cmd
}

func newCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a single user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := initEnv()
			if err != nil {
				return err
			}
			defer env.close()

			user, err := env.users.Create(cmd.Context(), service.CreateUserRequest{
				RegID:    regID,
				Role:     models.UserRole(role),
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.RegID, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&regID, "reg-id", "", "Registration id (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleStudent), "Role: teacher or student")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	_ = cmd.MarkFlagRequired("reg-id")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSetPasswordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Replace the password of an existing user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := initEnv()
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.users.SetPassword(cmd.Context(), regID, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", regID)
			return nil
		},
	}
	cmd.Flags().StringVar(&regID, "reg-id", "", "Registration id (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "New password (required)")
	_ = cmd.MarkFlagRequired("reg-id")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := initEnv()
			if err != nil {
				return err
			}
			defer env.close()

			if err := database.Migrate(env.db, env.log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

type cliEnv struct {
	cfg   *config.Config
	log   *zap.Logger
	db    *sqlx.DB
	users *service.UserService
}

func (e *cliEnv) close() {
	_ = e.db.Close()
	_ = e.log.Sync()
}

func initEnv() (*cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	users := service.NewUserService(repository.NewUserRepository(db), validator.New(), log)
	return &cliEnv{cfg: cfg, log: log, db: db, users: users}, nil
}
