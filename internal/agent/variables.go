package agent

// ActivationVariables lists the activation payload keys in wire order.
var ActivationVariables = []string{
	"dualboot",
	"live",
	"image",
	"release",
	"vendor",
	"product",
	"serial",
}

// PingVariables lists the ping payload keys in wire order.
var PingVariables = []string{
	"dualboot",
	"image",
	"release",
	"vendor",
	"product",
	"count",
	"metrics_enabled",
	"metrics_environment",
}
