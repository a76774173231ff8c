package mail

import (
	"fmt"

	"github.com/toutaio/kubit"
	"github.com/toutaio/kubit/app"
)

// Namespace is where the Mailer is bound. It is aliased as "Mail".
const Namespace = "Kubit/Addons/Mail"

// Drivers accepted by Config.Driver.
const (
	DriverLog    = "log"
	DriverResend = "resend"
)

// Config selects and configures the delivery driver. Environment variables
// provide the defaults; config/mail.yaml overrides them.
type Config struct {
	Driver    string `env:"MAIL_DRIVER,default=log"`
	APIKey    string `env:"RESEND_API_KEY"`
	FromEmail string `env:"RESEND_FROM_EMAIL"`
	FromName  string `env:"RESEND_FROM_NAME"`
}

// Provider binds a Mailer.
//
// Example config/mail.yaml:
//
//	driver: resend
//	apiKey: ${RESEND_API_KEY}
//	from:
//	  email: hello@example.com
//	  name: Example
type Provider struct{}

func (p *Provider) Name() string { return "mail" }

// Register binds the mailer as a singleton.
func (p *Provider) Register(application *app.Application) error {
	container := application.Container()

	err := container.Singleton(Namespace, func(r kubit.Resolver) (any, error) {
		cfg, err := LoadConfig(application)
		if err != nil {
			return nil, err
		}
		sender, err := NewSender(cfg, application)
		if err != nil {
			return nil, err
		}
		return New(sender, Address(cfg.FromName, cfg.FromEmail), application.Logger()), nil
	})
	if err != nil {
		return err
	}

	if err := container.RegisterType((*Mailer)(nil), Namespace); err != nil {
		return err
	}
	return container.Alias(Namespace, "Mail")
}

// NewSender builds the Sender for cfg.Driver.
func NewSender(cfg Config, application *app.Application) (Sender, error) {
	switch cfg.Driver {
	case DriverLog, "":
		return NewLogSender(application.Logger()), nil
	case DriverResend:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("mail: resend driver requires an api key")
		}
		return NewResendSender(cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("mail: unknown driver %q", cfg.Driver)
	}
}

// LoadConfig reads the mail settings from the environment and the mail
// config file.
func LoadConfig(application *app.Application) (Config, error) {
	var cfg Config
	if err := application.Env().Decode(&cfg); err != nil {
		return cfg, err
	}

	tree := application.Config()
	cfg.Driver = tree.String("mail.driver", cfg.Driver)
	cfg.APIKey = tree.String("mail.apiKey", cfg.APIKey)
	cfg.FromEmail = tree.String("mail.from.email", cfg.FromEmail)
	cfg.FromName = tree.String("mail.from.name", cfg.FromName)
	return cfg, nil
}
