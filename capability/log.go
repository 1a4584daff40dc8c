package capability

import "log"

func warn(appID string) {
	log.Printf("bbskit/capability: app %s tripped a rate limit, cooling down", appID)
}
