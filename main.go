package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/commercelab/storefront/cmd"
	"github.com/commercelab/storefront/internal/constants"
	"github.com/commercelab/storefront/internal/log"
)

func main() {
	logger := log.InitLogger(
		fmt.Sprintf("/var/log/%s.log", constants.AppStorefrontService),
		os.Getenv("APP_ENV"),
	)

	c, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	c = logger.WithContext(c)
	if err := cmd.Execute(c); err != nil {
		logger.Fatal().Err(err).Msg(err.Error())
	}
}
