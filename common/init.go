package common

import (
	"encoding/base64"
	"flag"
	"time"

	"github.com/chatbridge/chatbridge/common/config"
	"github.com/chatbridge/chatbridge/common/logger"
	"github.com/chatbridge/chatbridge/common/random"
)

var Version = "v0.2.0"

var StartTime = time.Now().Unix()

var (
	Port         = flag.Int("port", 3000, "the listening port")
	PrintVersion = flag.Bool("version", false, "print version and exit")
)

func Init() {
	flag.Parse()

	if config.SessionSecret == "" {
		config.SessionSecret = base64.StdEncoding.EncodeToString([]byte(random.GetRandomString(32)))
		logger.Logger.Warn("SESSION_SECRET not set, generated a random one; sessions will not survive restarts")
	} else if config.SessionSecret == "random_string" {
		logger.Logger.Error("SESSION_SECRET is set to an example value, please change it to a random string.")
	}
}
