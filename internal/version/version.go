package version

const (
	AppName    = "Sombra"
	AppVersion = "0.4.0"
)
