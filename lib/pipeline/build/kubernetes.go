package build

import (
	"os"
	"path/filepath"

	"github.com/gravitational/rustconn/lib/errs"
	"k8s.io/client-go/tools/clientcmd"
)

// buildKubernetes builds a "kubectl exec" argument vector. Before assembling
// argv it validates that the configured context actually exists in the
// user's kubeconfig (SPEC_FULL.md §4.3, "Kubernetes [EXPANSION]") — a check
// original_source/ performs before shelling out, which the distilled spec
// dropped but which turns a silent typo into a build-time error here.
func buildKubernetes(c *BuildContext) (Argv, *StdinPayload, error) {
	kc := c.Connection.Kubernetes
	if kc == nil || kc.Pod == "" {
		return nil, nil, errs.NewVariableError(errs.VarInvalidSyntax, "kubernetes.pod", "kubernetes connections require a target pod")
	}

	if kc.Context != "" {
		if err := validateKubeContext(kc.Context); err != nil {
			return nil, nil, err
		}
	}

	argv := Argv{"kubectl"}
	if kc.Context != "" {
		argv = append(argv, "--context", kc.Context)
	}
	if kc.Namespace != "" {
		argv = append(argv, "-n", kc.Namespace)
	}
	argv = append(argv, "exec", "-it", kc.Pod)
	if kc.Container != "" {
		argv = append(argv, "-c", kc.Container)
	}

	extra, err := customArgs(c)
	if err != nil {
		return nil, nil, err
	}
	argv = append(argv, "--")
	if len(extra) > 0 {
		argv = append(argv, extra...)
	} else {
		argv = append(argv, "/bin/sh")
	}
	return argv, nil, nil
}

// validateKubeContext loads the default kubeconfig (respecting KUBECONFIG)
// and confirms contextName is one of its defined contexts.
func validateKubeContext(contextName string) error {
	path := os.Getenv("KUBECONFIG")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errs.NewVariableError(errs.VarInvalidSyntax, "kubernetes.context", "cannot locate kubeconfig: "+err.Error())
		}
		path = filepath.Join(home, ".kube", "config")
	}
	cfg, err := clientcmd.LoadFromFile(path)
	if err != nil {
		return errs.NewVariableError(errs.VarInvalidSyntax, "kubernetes.context", "cannot load kubeconfig: "+err.Error())
	}
	if _, ok := cfg.Contexts[contextName]; !ok {
		return errs.NewVariableError(errs.VarInvalidSyntax, "kubernetes.context", "no such context: "+contextName)
	}
	return nil
}
