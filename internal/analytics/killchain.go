package analytics

import (
	"math"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// killChainStageInfo carries the fixed label/description shown for each
// stage regardless of whether it has any alerts this round. Grounded on
// original_source/services/api/routers/policy.py's get_killchain() stage
// table.
var killChainStageInfo = map[model.KillChainStage]struct{ label, description string }{
	model.StageReconnaissance: {"Reconnaissance", "Scanning and probing for AI services"},
	model.StageInitialAccess:  {"Initial Access", "First connection to unauthorized AI service"},
	model.StageExecution:      {"Execution", "Active usage of AI service - queries, uploads, prompts"},
	model.StageExfiltration:   {"Exfiltration", "Data leaving the network to AI services"},
	model.StageImpact:         {"Impact", "Policy violations, compliance breaches, high-severity events"},
}

// stageAlertLimit caps how many alerts each stage summary embeds,
// mirroring the original endpoint's "top 10 per stage" trim.
const stageAlertLimit = 10

// KillChain buckets alerts by the killchain_stage the analyzer already
// attached to each one (spec.md §4.6 point 4), and computes
// chain_completion = 20*active_stages (spec.md §4.8).
func KillChain(alerts []model.Alert) KillChainResponse {
	byStage := make(map[model.KillChainStage][]model.Alert)
	for _, a := range alerts {
		byStage[a.KillChainStage] = append(byStage[a.KillChainStage], a)
	}

	active := 0
	stages := make([]KillChainStageSummary, 0, len(model.AllKillChainStages))
	for _, stage := range model.AllKillChainStages {
		info := killChainStageInfo[stage]
		hits := byStage[stage]
		if len(hits) > 0 {
			active++
		}
		limited := hits
		if len(limited) > stageAlertLimit {
			limited = limited[:stageAlertLimit]
		}
		stages = append(stages, KillChainStageSummary{
			ID: stage, Label: info.label, Description: info.description,
			Count: len(hits), Alerts: limited, Active: len(hits) > 0,
		})
	}

	return KillChainResponse{
		Stages:          stages,
		TotalAlerts:     len(alerts),
		ActiveStages:    active,
		ChainCompletion: math.Round(float64(active) / float64(len(model.AllKillChainStages)) * 100),
	}
}
