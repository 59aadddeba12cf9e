package proxy

import "github.com/maven-mirror/maven-mirror/internal/secret"

func secretProviderFor(dir string) secret.Provider {
	return secret.NewProvider(dir, nil)
}
