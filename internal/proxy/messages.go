package proxy

import "fmt"

// 响应正文始终为纯文本；拒绝与真正不存在只在日志中区分。
const (
	headerCacheHit = "X-Mirror-Cache-Hit"

	msgServerError         = "Server error"
	msgAuthMisconfigured   = "500 Server error: Could not authenticate with the upstream package registry. This is probably due to a misconfiguration in the mirror."
	msgUpstreamNotFound    = "404 Not Found: Looks like this package doesn't exist in the upstream package registry."
	msgUpstreamInvalidPath = "422: The file path you provided was probably invalid (not a valid Maven repository path)"
	msgRedirectFailed      = "Could not fetch the artifact from the upstream package registry."
)

func msgInvalidPath(p string) string {
	return fmt.Sprintf("The path %s is not a valid Maven repository path.", p)
}

func msgNamespaceRejected(rootNamespace string) string {
	return fmt.Sprintf("GroupId does not start with '%s'. Assuming a package outside the mirrored namespace", rootNamespace)
}

func msgNotVisible(repo, organization string) string {
	return fmt.Sprintf("Could not get metadata for the repository %q in the %s organization - it may not exist, or perhaps it's a private repository?", repo, organization)
}

func msgUnexpected(upstreamURL string) string {
	return fmt.Sprintf("Got an unexpected response from the upstream package registry %s", upstreamURL)
}
