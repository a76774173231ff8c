package main

import (
	"github.com/toutaio/kubit/internal/ace"
	"github.com/toutaio/kubit/providers/database"
	"github.com/toutaio/kubit/providers/drive"
	"github.com/toutaio/kubit/providers/httpserver"
	"github.com/toutaio/kubit/providers/mail"
	"github.com/toutaio/kubit/providers/redis"
	"github.com/toutaio/kubit/providers/scheduler"
)

func main() {
	ace.Execute(
		&httpserver.Provider{},
		&database.Provider{},
		&redis.Provider{},
		&mail.Provider{},
		&drive.Provider{},
		&scheduler.Provider{},
	)
}
