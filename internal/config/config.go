package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Redis struct {
		Addr     string
		Password string
		DB       int
	} `mapstructure:"redis"`

	RabbitMQ struct {
		URL      string
		Exchange string
	} `mapstructure:"rabbitmq"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	Studio  Studio  `mapstructure:"studio"`
	Billing Billing `mapstructure:"billing"`
}

// Studio holds the per-site settings of the single studio.
type Studio struct {
	Name                    string
	Weekdays                []string
	CancellationNoticeHours int `mapstructure:"cancellation_notice_hours"`
	// MaxReservations caps the weekly capacity of any member; 0 means no cap.
	MaxReservations int `mapstructure:"max_reservations"`
}

type Billing struct {
	DueDay            int    `mapstructure:"due_day"`
	HalfMonthAfterDay int    `mapstructure:"half_month_after_day"`
	RenewalDays       int    `mapstructure:"renewal_days"`
	GenerateSchedule  string `mapstructure:"generate_schedule"`
	OverdueSchedule   string `mapstructure:"overdue_schedule"`
	RenewSchedule     string `mapstructure:"renew_schedule"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ClassDays returns the weekdays on which the studio runs classes.
func (s Studio) ClassDays() ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(s.Weekdays))
	for _, name := range s.Weekdays {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		out = append(out, d)
	}
	return out, nil
}

// DefaultStudio matches the original studio: classes Monday to Saturday,
// three hours notice for changes.
func DefaultStudio() Studio {
	return Studio{
		Name:                    "Studio",
		Weekdays:                []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"},
		CancellationNoticeHours: 3,
	}
}

func DefaultBilling() Billing {
	return Billing{
		DueDay:            10,
		HalfMonthAfterDay: 15,
		RenewalDays:       30,
		GenerateSchedule:  "0 2 1 * *",
		OverdueSchedule:   "0 3 * * *",
		RenewSchedule:     "0 4 * * *",
	}
}

func setDefaults(v *viper.Viper) {
	st := DefaultStudio()
	bl := DefaultBilling()

	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "studio.billing")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)

	v.SetDefault("studio.name", st.Name)
	v.SetDefault("studio.weekdays", st.Weekdays)
	v.SetDefault("studio.cancellation_notice_hours", st.CancellationNoticeHours)
	v.SetDefault("studio.max_reservations", st.MaxReservations)

	v.SetDefault("billing.due_day", bl.DueDay)
	v.SetDefault("billing.half_month_after_day", bl.HalfMonthAfterDay)
	v.SetDefault("billing.renewal_days", bl.RenewalDays)
	v.SetDefault("billing.generate_schedule", bl.GenerateSchedule)
	v.SetDefault("billing.overdue_schedule", bl.OverdueSchedule)
	v.SetDefault("billing.renew_schedule", bl.RenewSchedule)
}

func Load(path string) (Config, error) {
	// .env рядом с бинарником необязателен
	if _, err := os.Stat(".env"); err == nil {
		_ = gotenv.Load(".env")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Billing.DueDay < 1 || c.Billing.DueDay > 28 {
		errs = append(errs, fmt.Errorf("billing.due_day must be within 1..28, got %d", c.Billing.DueDay))
	}
	if c.Billing.HalfMonthAfterDay < 1 || c.Billing.HalfMonthAfterDay > 28 {
		errs = append(errs, fmt.Errorf("billing.half_month_after_day must be within 1..28, got %d", c.Billing.HalfMonthAfterDay))
	}
	if c.Billing.RenewalDays < 1 {
		errs = append(errs, fmt.Errorf("billing.renewal_days must be positive, got %d", c.Billing.RenewalDays))
	}
	if c.Studio.CancellationNoticeHours < 0 {
		errs = append(errs, errors.New("studio.cancellation_notice_hours must not be negative"))
	}
	if _, err := c.Studio.ClassDays(); err != nil {
		errs = append(errs, fmt.Errorf("studio.weekdays: %w", err))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("app.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// Location is the studio time zone; civil dates (due dates, months) are taken in it.
func (c Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.App.Timezone)
}
