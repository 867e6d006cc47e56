package services

import "github.com/asoforge/asoforge/modules/ruleset/domain/types"

const (
	kpiSchemaVersion     = "kpi/v2"
	formulaSchemaVersion = "formula/v1"

	// codeLayerVersion marks layers served from code-defined rules or
	// absent entirely.
	codeLayerVersion int64 = 0
)

// LayerVersions carries the per-layer version numbers observed while
// loading. Nil pointers mean the layer was code-defined or absent.
type LayerVersions struct {
	Base     *int64
	Vertical *int64
	Market   *int64
	Client   *int64
}

// BuildVersionInfo stamps a reproducibility fingerprint onto a merged
// ruleset. Pure bookkeeping: it never influences scoring output.
func BuildVersionInfo(meta LayerVersions) types.VersionBlock {
	return types.VersionBlock{
		Base:                 versionOrDefault(meta.Base),
		Vertical:             versionOrDefault(meta.Vertical),
		Market:               versionOrDefault(meta.Market),
		Client:               versionOrDefault(meta.Client),
		KPISchemaVersion:     kpiSchemaVersion,
		FormulaSchemaVersion: formulaSchemaVersion,
	}
}

func versionOrDefault(v *int64) int64 {
	if v == nil {
		return codeLayerVersion
	}
	return *v
}
