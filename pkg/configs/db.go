package configs

import (
	"time"

	"github.com/spf13/viper"
)

// DBType 数据库类型，同一驱动可以有多个别名.
type DBType string

const (
	PostgreSQL DBType = "postgresql"
	Postgres   DBType = "postgres"
	Pg         DBType = "pg"

	MySQL   DBType = "mysql"
	MariaDB DBType = "mariadb"

	SQLite DBType = "sqlite"
)

const (
	DefaultDatabaseHost      = "localhost"
	DefaultDatabasePort      = 5432
	DefaultDatabaseUser      = "postgres"
	DefaultDatabasePassword  = ""
	DefaultDatabaseName      = "cloudvault"
	DefaultDatabaseSSLMode   = "disable"
	DefaultDatabaseType      = SQLite // 单机部署默认 SQLite
	DefaultMaxOpenConns      = 0
	DefaultMaxIdleConns      = 5
	DefaultConnMaxLifetime   = 30 * time.Minute
	DefaultSQLiteBusyTimeout = 5 * time.Second
)

// DBConfig 元数据库配置.
type DBConfig struct {
	Type            DBType        `mapstructure:"type"              rule:"oneof=postgresql postgres pg mysql mariadb sqlite"`
	Host            string        `mapstructure:"host"              rule:"hostname"`
	Port            int           `mapstructure:"port"              rule:"min=1,max=65535"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"          rule:"required"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    rule:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    rule:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// 以下仅对 SQLite 生效
	Memory      bool          `mapstructure:"memory"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// DriverName 驱动族名称，别名归一.
func (c *DBConfig) DriverName() string {
	switch c.Type {
	case PostgreSQL, Postgres, Pg:
		return "postgres"
	case MySQL, MariaDB:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

func (c *DBConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("db.type", DefaultDatabaseType)
	v.SetDefault("db.host", DefaultDatabaseHost)
	v.SetDefault("db.port", DefaultDatabasePort)
	v.SetDefault("db.user", DefaultDatabaseUser)
	v.SetDefault("db.password", DefaultDatabasePassword)
	v.SetDefault("db.database", DefaultDatabaseName)
	v.SetDefault("db.sslmode", DefaultDatabaseSSLMode)
	v.SetDefault("db.max_open_conns", DefaultMaxOpenConns)
	v.SetDefault("db.max_idle_conns", DefaultMaxIdleConns)
	v.SetDefault("db.conn_max_lifetime", DefaultConnMaxLifetime)
	v.SetDefault("db.memory", false)
	v.SetDefault("db.busy_timeout", DefaultSQLiteBusyTimeout)
}
