package deployer

import "github.com/oshokin/apk-deploy/internal/domain/deploy"

// ResolveTargets turns the serials given on the command line into targets.
// No serials means the default device. Order and duplicates are kept.
func ResolveTargets(serials []string) []deploy.Target {
	if len(serials) == 0 {
		return []deploy.Target{deploy.DefaultTarget()}
	}

	targets := make([]deploy.Target, 0, len(serials))
	for _, serial := range serials {
		targets = append(targets, deploy.Target{Serial: serial})
	}

	return targets
}
