package context

type Key string

const (
	Claims      Key = "claims"
	Application Key = "application"
	Params      Key = "params"
	ClientIP    Key = "client_ip"
)
