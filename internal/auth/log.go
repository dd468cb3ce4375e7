package auth

import "github.com/sirupsen/logrus"

var log = logrus.WithField("component", "auth")
