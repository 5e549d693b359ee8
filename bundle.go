package rtcbridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// ScriptModule is the import path scripts use for the proxy layer:
//
//	import { RtcEngineKit } from "rtcbridge";
const ScriptModule = "rtcbridge"

// scriptExports are the proxy layer globals re-exported by ScriptModule.
var scriptExports = []string{
	"NativeModules",
	"NativeEventEmitter",
	"ResultCode",
	"OptionType",
	"WBOptionType",
	"RtcEngineKit",
	"RtcWhiteboard",
	"RtcAnnotationManager",
	"RtcAnnotation",
	"RtcMessageService",
	"RtcNetworkManager",
	"RtcVideoStreamManager",
	"RtcSurfaceView",
	"RtcWhiteboardSurfaceView",
}

// scriptModuleSource is the virtual module resolved for ScriptModule. The
// script host installs the proxy layer as globals before any script runs.
func scriptModuleSource() string {
	var sb strings.Builder
	for _, name := range scriptExports {
		fmt.Fprintf(&sb, "export const %s = globalThis.%s;\n", name, name)
	}
	return sb.String()
}

// BundleScript bundles the script at path with its relative imports into
// one self-contained IIFE. Imports of ScriptModule resolve to the proxy
// layer. A script without imports is returned unchanged.
func BundleScript(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	src := string(source)
	if !needsBundling(src) {
		return src, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving script path: %w", err)
	}
	result := esbuild.Build(esbuild.BuildOptions{
		EntryPoints:   []string{abs},
		AbsWorkingDir: filepath.Dir(abs),
		Bundle:        true,
		Format:        esbuild.FormatIIFE,
		Write:         false,
		Platform:      esbuild.PlatformNeutral,
		Target:        esbuild.ES2020,
		Plugins:       []esbuild.Plugin{proxyLayerPlugin()},
	})
	if len(result.Errors) > 0 {
		var msgs []string
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return "", fmt.Errorf("bundling %s: %s", filepath.Base(path), strings.Join(msgs, "; "))
	}
	if len(result.OutputFiles) == 0 {
		return "", fmt.Errorf("bundling produced no output")
	}
	return string(result.OutputFiles[0].Contents), nil
}

func proxyLayerPlugin() esbuild.Plugin {
	return esbuild.Plugin{
		Name: "rtcbridge-proxy-layer",
		Setup: func(build esbuild.PluginBuild) {
			build.OnResolve(esbuild.OnResolveOptions{Filter: "^" + ScriptModule + "$"},
				func(args esbuild.OnResolveArgs) (esbuild.OnResolveResult, error) {
					return esbuild.OnResolveResult{Path: ScriptModule, Namespace: ScriptModule}, nil
				})
			build.OnLoad(esbuild.OnLoadOptions{Filter: ".*", Namespace: ScriptModule},
				func(args esbuild.OnLoadArgs) (esbuild.OnLoadResult, error) {
					contents := scriptModuleSource()
					return esbuild.OnLoadResult{Contents: &contents, Loader: esbuild.LoaderJS}, nil
				})
		},
	}
}

// needsBundling checks if a script contains module syntax that requires
// bundling. Plain scripts run as they are.
func needsBundling(source string) bool {
	return strings.Contains(source, "import ") ||
		strings.Contains(source, "import{") ||
		strings.Contains(source, "export ") ||
		strings.Contains(source, "require(")
}
