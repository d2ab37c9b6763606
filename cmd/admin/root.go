package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"folioforge/internal/admin"
	"folioforge/internal/config"
	"folioforge/internal/database"
)

// dbFlags 覆盖从环境变量读取的数据库配置。
type dbFlags struct {
	host     string
	port     int
	name     string
	user     string
	password string
	sslMode  string
}

func newRootCmd() *cobra.Command {
	flags := &dbFlags{}
	root := &cobra.Command{
		Use:           "folioforge-admin",
		Short:         "FolioForge 运维命令",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.host, "db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
	pf.IntVar(&flags.port, "db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
	pf.StringVar(&flags.name, "db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
	pf.StringVar(&flags.user, "db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
	pf.StringVar(&flags.password, "db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
	pf.StringVar(&flags.sslMode, "db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")

	root.AddCommand(
		newCreateAdminCmd(flags),
		newGrantCreditsCmd(flags),
		newSetPlanCmd(flags),
		newRenderCmd(),
	)
	return root
}

// config 合并命令行参数与环境变量。
func (f *dbFlags) config() (config.DatabaseConfig, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return config.DatabaseConfig{}, errors.Wrap(err, "load database config")
	}
	if v := strings.TrimSpace(f.host); v != "" {
		cfg.Host = v
	}
	if f.port > 0 {
		cfg.Port = f.port
	}
	if v := strings.TrimSpace(f.name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(f.user); v != "" {
		cfg.User = v
	}
	if f.password != "" {
		cfg.Password = f.password
	}
	if v := strings.TrimSpace(f.sslMode); v != "" {
		cfg.SSLMode = v
	}
	return cfg, nil
}

// open 连接数据库并执行迁移。
func (f *dbFlags) open() (*gorm.DB, *admin.Service, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.InitDatabase(cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "init database")
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, errors.Wrap(err, "auto migrate")
	}
	return db, admin.NewService(db), nil
}
