package main

import (
	"fingerforce"

	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
	genericservice "go.viam.com/rdk/services/generic"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: genericservice.API, Model: fingerforce.PinchModel},
		resource.APIModel{API: discovery.API, Model: fingerforce.HandDiscoveryModel},
	)
}
