package stage

import (
	"fmt"
	"os"
	"os/exec"

	"recap/internal/services"
)

// RequireArtifact verifies that a file produced by an earlier stage still
// exists on disk. On failure it returns a services.ErrValidation suitable for
// stage Execute methods.
func RequireArtifact(path, stageName, what string) error {
	if path == "" {
		return services.Wrap(
			services.ErrValidation, stageName, "locate "+what,
			what+" path missing; resume the job to rebuild it", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(
			services.ErrValidation, stageName, "locate "+what,
			fmt.Sprintf("%s not found at %s; resume the job to rebuild it", what, path), err)
	}
	if info.IsDir() {
		return services.Wrap(
			services.ErrValidation, stageName, "locate "+what,
			fmt.Sprintf("%s path %s is a directory", what, path), nil)
	}
	return nil
}

// BinaryHealth reports stage readiness based on whether the named binary is
// resolvable on PATH. Handlers that shell out share this for HealthCheck.
func BinaryHealth(stageName, binary string) Health {
	if binary == "" {
		return Unhealthy(stageName, "binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return Unhealthy(stageName, fmt.Sprintf("%s not found on PATH", binary))
	}
	return Healthy(stageName)
}
