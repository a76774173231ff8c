package drive

import (
	"log/slog"
	"path/filepath"

	"github.com/toutaio/kubit"
	"github.com/toutaio/kubit/app"
)

// Namespace is where the Drive is bound. It is aliased as "Drive".
const Namespace = "Kubit/Core/Drive"

// Disk names mounted by the provider.
const (
	DiskLocal = "local"
	DiskS3    = "s3"
)

// Config lists the disks to mount. The s3 disk is mounted only when a bucket
// is configured.
type Config struct {
	Default   string `env:"DRIVE_DISK,default=local"`
	LocalRoot string `env:"DRIVE_LOCAL_ROOT"`
	LocalURL  string `env:"DRIVE_LOCAL_URL,default=/uploads"`
	S3        S3Config
}

// Provider binds a Drive with a local disk and an optional s3 disk.
//
// Example config/drive.yaml:
//
//	default: s3
//	local:
//	  root: storage/uploads
//	  url: /uploads
//	s3:
//	  bucket: assets
//	  region: eu-west-1
//	  accessKey: ${DRIVE_S3_ACCESS_KEY}
//	  secretKey: ${DRIVE_S3_SECRET_KEY}
type Provider struct{}

func (p *Provider) Name() string { return "drive" }

// Register binds the drive as a singleton. Disks are built on first use.
func (p *Provider) Register(application *app.Application) error {
	container := application.Container()

	err := container.Singleton(Namespace, func(r kubit.Resolver) (any, error) {
		cfg, err := LoadConfig(application)
		if err != nil {
			return nil, err
		}
		return Open(cfg, application.Logger())
	})
	if err != nil {
		return err
	}

	if err := container.RegisterType((*Drive)(nil), Namespace); err != nil {
		return err
	}
	return container.Alias(Namespace, "Drive")
}

// Open mounts the configured disks.
func Open(cfg Config, log *slog.Logger) (*Drive, error) {
	drive := New(cfg.Default)

	local, err := NewLocalDisk(cfg.LocalRoot, cfg.LocalURL)
	if err != nil {
		return nil, err
	}
	drive.Mount(DiskLocal, local)

	if cfg.S3.Bucket != "" {
		disk, err := NewS3Disk(cfg.S3)
		if err != nil {
			return nil, err
		}
		drive.Mount(DiskS3, disk)
	}

	if _, err := drive.Use(cfg.Default); err != nil {
		return nil, err
	}

	log.Debug("drive ready", slog.String("default", cfg.Default), slog.Any("disks", drive.Disks()))
	return drive, nil
}

// LoadConfig reads the drive settings from the environment and the drive
// config file. The local root defaults to storage/ under the application root.
func LoadConfig(application *app.Application) (Config, error) {
	var cfg Config
	if err := application.Env().Decode(&cfg); err != nil {
		return cfg, err
	}

	tree := application.Config()
	cfg.Default = tree.String("drive.default", cfg.Default)
	cfg.LocalRoot = tree.String("drive.local.root", cfg.LocalRoot)
	cfg.LocalURL = tree.String("drive.local.url", cfg.LocalURL)
	cfg.S3.Bucket = tree.String("drive.s3.bucket", cfg.S3.Bucket)
	cfg.S3.Region = tree.String("drive.s3.region", cfg.S3.Region)
	cfg.S3.Endpoint = tree.String("drive.s3.endpoint", cfg.S3.Endpoint)
	cfg.S3.AccessKey = tree.String("drive.s3.accessKey", cfg.S3.AccessKey)
	cfg.S3.SecretKey = tree.String("drive.s3.secretKey", cfg.S3.SecretKey)
	cfg.S3.PublicURL = tree.String("drive.s3.publicUrl", cfg.S3.PublicURL)
	cfg.S3.PathStyle = tree.Bool("drive.s3.pathStyle", cfg.S3.PathStyle)

	if cfg.LocalRoot == "" {
		cfg.LocalRoot = filepath.Join(application.Root(), "storage")
	} else if !filepath.IsAbs(cfg.LocalRoot) {
		cfg.LocalRoot = filepath.Join(application.Root(), cfg.LocalRoot)
	}
	return cfg, nil
}
