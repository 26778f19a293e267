package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/nevian427/yasmdr/internal/smdr"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/pflag"
)

var ErrConfig = errors.New("invalid config:")

type Config struct {
	// откуда читаем станцию: tcp, serial, spool через запятую
	Sources string `toml:"sources" env:"YASMDR_SOURCES" env-default:"tcp"`
	CDRAddr string `toml:"cdraddr" env:"YASMDR_CDRADDR" env-default:":5014"`
	// параметры COM-порта как в настройках старого логгера
	SerialPort string `toml:"serialport" env:"YASMDR_SERIALPORT" env-default:"/dev/ttyS0"`
	BaudRate   int    `toml:"baudrate" env:"YASMDR_BAUDRATE" env-default:"9600"`
	DataBits   int    `toml:"databits" env:"YASMDR_DATABITS" env-default:"8"`
	Parity     string `toml:"parity" env:"YASMDR_PARITY" env-default:"None"`
	StopBits   string `toml:"stopbits" env:"YASMDR_STOPBITS" env-default:"One"`
	SpoolDir   string `toml:"spooldir" env:"YASMDR_SPOOLDIR"`

	// формат станции
	Strategy       string `toml:"strategy" env:"YASMDR_STRATEGY" env-default:"marker"`
	CallTypeOffset int    `toml:"calltypeoffset" env:"YASMDR_CALLTYPEOFFSET" env-default:"33"`
	MarkerOffset   int    `toml:"markeroffset" env:"YASMDR_MARKEROFFSET" env-default:"78"`
	SelfContained  string `toml:"selfcontained" env:"YASMDR_SELFCONTAINED" env-default:"O"`
	Continuable    string `toml:"continuable" env:"YASMDR_CONTINUABLE" env-default:"IUT"`

	MetricsAddr string `toml:"metricsaddr" env:"YASMDR_METRICSADDR" env-default:":9014"`
	DBDriver    string `toml:"dbdriver" env:"YASMDR_DBDRIVER" env-default:"pg"`
	DBPort      int    `toml:"dbport" env:"YASMDR_DBPORT" env-default:"5432"`
	DBHost      string `toml:"dbhost" env:"YASMDR_DBHOST" env-default:"localhost"`
	DBName      string `toml:"dbname" env:"YASMDR_DBNAME" env-default:"postgres"`
	DBUser      string `toml:"dbuser" env:"YASMDR_DBUSER" env-default:"cdr"`
	DBPassword  string `toml:"dbpassword" env:"YASMDR_DBPASSWORD"`
	DBPath      string `toml:"dbpath" env:"YASMDR_DBPATH" env-default:"./yasmdr.db"`
	DBTable     string `toml:"dbtable" env:"YASMDR_DBTABLE" env-default:"smdr_cdr"`

	MQTTBroker   string `toml:"mqttbroker" env:"YASMDR_MQTTBROKER"`
	MQTTClientID string `toml:"mqttclientid" env:"YASMDR_MQTTCLIENTID" env-default:"yasmdr"`
	MQTTTopic    string `toml:"mqtttopic" env:"YASMDR_MQTTTOPIC" env-default:"smdr"`

	JournalDir   string `toml:"journaldir" env:"YASMDR_JOURNALDIR"`
	Logfile      string `toml:"logfile" env:"YASMDR_LOGFILE"`
	FailCDRFile  string `toml:"failcdr" env:"YASMDR_FAILCDR"`
	MaxMalformed int    `toml:"maxmalformed" env:"YASMDR_MAXMALFORMED"`
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func ParseConfig(args []string) (*Config, error) {
	// парсим флаги - нас интересуют только лог и конфиг
	fs := pflag.NewFlagSet("yasmdr", pflag.ContinueOnError)
	cfgfile := fs.StringP("config", "c", "./yasmdr.toml", "File to read config params from")
	logfile := fs.StringP("logfile", "l", "", "File to write exec time messages.")
	fs.Lookup("logfile").NoOptDefVal = "./yasmdr.log"
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// префикс для логирования
	jww.SetPrefix("yasmdr")
	// по-умолчанию в файл пишем всё
	jww.SetLogThreshold(jww.LevelTrace)
	// в консоль поменьше подробностей
	jww.SetStdoutThreshold(jww.LevelInfo)

	cfg, err := Load(*cfgfile)
	if err != nil {
		return nil, err
	}

	// если нам сказали в лог - пишем туда
	if len(*logfile) > 0 {
		cfg.Logfile = *logfile
	}
	if len(cfg.Logfile) > 0 {
		// файл живёт до конца процесса
		f, err := os.OpenFile(cfg.Logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		jww.SetLogOutput(f)
	}
	return cfg, nil
}

// Load читает конфиг из файла (toml, yaml, json, env - по расширению)
// и переменных окружения.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	// без конфига нам делать нечего - выход
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("Error loading config (%s): %q", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SourceList - список включённых источников.
func (c *Config) SourceList() []string {
	var out []string
	for _, s := range strings.Split(c.Sources, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Grammar собирает таблицу формата станции с поправками из конфига.
func (c *Config) Grammar() smdr.Grammar {
	g := smdr.VodaviXTS
	g.Strategy = smdr.Strategy(strings.ToLower(c.Strategy))
	g.CallTypeOffset = c.CallTypeOffset
	g.MarkerOffset = c.MarkerOffset
	g.SelfContained = strings.ToUpper(c.SelfContained)
	g.Continuable = strings.ToUpper(c.Continuable)
	return g
}

func (c *Config) Validate() error {
	sources := c.SourceList()
	if len(sources) == 0 {
		return fmt.Errorf("%w no sources", ErrConfig)
	}
	for _, s := range sources {
		switch s {
		case "tcp":
			if c.CDRAddr == "" {
				return fmt.Errorf("%w cdraddr is required for tcp source", ErrConfig)
			}
		case "serial":
			if c.SerialPort == "" {
				return fmt.Errorf("%w serialport is required for serial source", ErrConfig)
			}
			if c.BaudRate <= 0 {
				return fmt.Errorf("%w baudrate must be positive, got %d", ErrConfig, c.BaudRate)
			}
			if c.DataBits < 5 || c.DataBits > 8 {
				return fmt.Errorf("%w databits must be between 5 and 8, got %d", ErrConfig, c.DataBits)
			}
		case "spool":
			if c.SpoolDir == "" {
				return fmt.Errorf("%w spooldir is required for spool source", ErrConfig)
			}
		default:
			return fmt.Errorf("%w unknown source %q", ErrConfig, s)
		}
	}

	switch c.DBDriver {
	case "pg", "pgsql", "postgresql", "mysql", "sqlite", "sqlite3", "none":
	default:
		return fmt.Errorf("%w invalid DB driver %s", ErrConfig, c.DBDriver)
	}
	if !tableName.MatchString(c.DBTable) {
		return fmt.Errorf("%w invalid table name %q", ErrConfig, c.DBTable)
	}
	if c.MaxMalformed < 0 {
		return fmt.Errorf("%w maxmalformed must not be negative", ErrConfig)
	}
	if err := c.Grammar().Validate(); err != nil {
		return fmt.Errorf("%w %s", ErrConfig, err)
	}
	return nil
}
