package driver

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/driverdeck/driverdeck/internal/executor"
)

var (
	installedRe = regexp.MustCompile(`Installed:\s*([^\n]+)`)
	candidateRe = regexp.MustCompile(`Candidate:\s*([^\n]+)`)
)

// packagePolicy is the installed/candidate version pair reported by
// "apt-cache policy". Either field may be empty when apt does not know
// the package.
type packagePolicy struct {
	Installed string
	Candidate string
}

// queryPolicy asks apt-cache for the installed and candidate versions
// of a package. A package unknown to apt yields empty fields, not an
// error.
func queryPolicy(ctx context.Context, runner executor.Runner, pkg string, timeout time.Duration) (packagePolicy, error) {
	result, err := runner.Run(ctx, executor.Command{
		Name:    "apt-cache",
		Args:    []string{"policy", pkg},
		Timeout: timeout,
	})
	if err != nil {
		return packagePolicy{}, err
	}

	return parsePolicy(result.Stdout), nil
}

func parsePolicy(output string) packagePolicy {
	var p packagePolicy
	if m := installedRe.FindStringSubmatch(output); m != nil {
		p.Installed = strings.TrimSpace(m[1])
	}
	if m := candidateRe.FindStringSubmatch(output); m != nil {
		p.Candidate = strings.TrimSpace(m[1])
	}
	return p
}
