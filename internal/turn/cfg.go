package turn

type ConfigOptions struct {
	Host         string
	PublicIP     string
	Port         int
	Username     string
	Password     string
	Realm        string
	RelayMinPort uint
	RelayMaxPort uint
}
