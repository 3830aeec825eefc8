package common

const (
	ServerName    = "newsd"
	ServerVersion = "0.1.0"
)
