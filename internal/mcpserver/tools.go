package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/templetwo/sovereign-stack/internal/chronicle"
	"github.com/templetwo/sovereign-stack/internal/coherence"
	"github.com/templetwo/sovereign-stack/internal/compaction"
	"github.com/templetwo/sovereign-stack/internal/governance"
	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

// registerTools binds every tool in the catalog named by spec §6 to its
// core-component operation.
func (s *Surface) registerTools() {
	s.registerRoute()
	s.registerDerive()
	s.registerScanThresholds()
	s.registerGovern()
	s.registerChronicleTools()
	s.registerSpiralTools()
	s.registerCompactionTools()
}

func (s *Surface) registerRoute() {
	tool := mcp.NewTool("route",
		mcp.WithDescription("Route a packet to a filesystem path via a schema, optionally persisting it."),
		mcp.WithObject("packet", mcp.Required(), mcp.Description("Scalar-valued fields to route.")),
		mcp.WithObject("schema", mcp.Description("Not read by this tool; the schema is taken only from schema_string.")),
		mcp.WithString("schema_string", mcp.Description("A schema expression, e.g. \"outcome={outcome}/decile(step)/{step}.json\".")),
		mcp.WithBoolean("dry_run", mcp.Description("When true, compute the path without writing.")),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			packet, err := argMap(args, "packet", true)
			if err != nil {
				return errorResult(err)
			}
			schemaStr, err := argString(args, "schema_string", false)
			if err != nil {
				return errorResult(err)
			}
			if schemaStr == "" {
				return errorResult(sovereignerr.New(sovereignerr.InvalidInput, "missing required argument \"schema_string\""))
			}
			schema, err := coherence.ParseSchema(schemaStr)
			if err != nil {
				return errorResult(err)
			}
			dryRun := argBool(args, "dry_run", false)

			path, err := s.coherence.Transmit(coherence.Packet(packet), schema, dryRun)
			if err != nil {
				return errorResult(err)
			}
			return textResult(path)
		})
	})
}

func (s *Surface) registerDerive() {
	tool := mcp.NewTool("derive",
		mcp.WithDescription("Infer a routing schema from a corpus of previously-routed paths."),
		mcp.WithArray("paths", mcp.Required(), mcp.Description("Paths to derive a common schema from.")),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			paths, err := argStringSlice(args, "paths")
			if err != nil {
				return errorResult(err)
			}
			schema, err := s.coherence.Derive(paths)
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(schema)
		})
	})
}

func (s *Surface) registerScanThresholds() {
	tool := mcp.NewTool("scan_thresholds",
		mcp.WithDescription("Scan a subtree for threshold-detector violations."),
		mcp.WithString("path", mcp.Required()),
		mcp.WithBoolean("recursive"),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			path, err := argString(args, "path", true)
			if err != nil {
				return errorResult(err)
			}
			recursive := argBool(args, "recursive", false)

			result, err := s.governance.ScanThresholds(ctx, path, recursive)
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(result)
		})
	})
}

func (s *Surface) registerGovern() {
	tool := mcp.NewTool("govern",
		mcp.WithDescription("Run detect->simulate->deliberate->audit over a proposed intervention on target."),
		mcp.WithString("target", mcp.Required()),
		mcp.WithString("vote", mcp.Required(), mcp.Description("proceed | pause | reject")),
		mcp.WithString("rationale"),
		mcp.WithString("stakeholder"),
		mcp.WithNumber("reversibility", mcp.Description("Cited reversibility, required for reject votes under the floor override.")),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			target, err := argString(args, "target", true)
			if err != nil {
				return errorResult(err)
			}
			choice, err := argString(args, "vote", true)
			if err != nil {
				return errorResult(err)
			}
			rationale, _ := argString(args, "rationale", false)
			stakeholder, _ := argString(args, "stakeholder", false)
			if stakeholder == "" {
				stakeholder = "operator"
			}

			vote := governance.Vote{
				Stakeholder:   stakeholder,
				Choice:        choice,
				Rationale:     rationale,
				Reversibility: argFloat(args, "reversibility", 1.0),
			}
			result, err := s.governance.Govern(ctx, governance.Intervention{TargetPath: target}, []governance.Vote{vote})
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(result)
		})
	})
}

func (s *Surface) registerChronicleTools() {
	s.mcp.AddTool(mcp.NewTool("record_insight",
		mcp.WithDescription("Record an append-only insight."),
		mcp.WithString("domain", mcp.Required()),
		mcp.WithString("content", mcp.Required()),
		mcp.WithNumber("intensity", mcp.Required()),
		mcp.WithString("layer", mcp.Required(), mcp.Description("ground_truth | hypothesis | open_thread")),
		mcp.WithNumber("confidence", mcp.Description("Required when layer=hypothesis.")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			domain, err := argString(args, "domain", true)
			if err != nil {
				return errorResult(err)
			}
			content, err := argString(args, "content", true)
			if err != nil {
				return errorResult(err)
			}
			layer, err := argString(args, "layer", true)
			if err != nil {
				return errorResult(err)
			}
			id, err := s.chronicle.RecordInsight(domain, content, argFloat(args, "intensity", 0), chronicle.Layer(layer), optionalFloatPtr(args, "confidence"), s.sessionID)
			if err != nil {
				return errorResult(err)
			}
			return textResult(id)
		})
	})

	s.mcp.AddTool(mcp.NewTool("recall_insights",
		mcp.WithDescription("Recall insights, most-recent-first."),
		mcp.WithString("domain"),
		mcp.WithString("layer"),
		mcp.WithNumber("limit"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			domain, _ := argString(args, "domain", false)
			layer, _ := argString(args, "layer", false)
			insights, err := s.chronicle.RecallInsights(domain, chronicle.Layer(layer), argInt(args, "limit", 10))
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(insights)
		})
	})

	s.mcp.AddTool(mcp.NewTool("record_learning",
		mcp.WithDescription("Record a learning."),
		mcp.WithString("what_happened", mcp.Required()),
		mcp.WithString("what_learned", mcp.Required()),
		mcp.WithString("applies_to", mcp.Required()),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			whatHappened, err := argString(args, "what_happened", true)
			if err != nil {
				return errorResult(err)
			}
			whatLearned, err := argString(args, "what_learned", true)
			if err != nil {
				return errorResult(err)
			}
			appliesTo, err := argString(args, "applies_to", true)
			if err != nil {
				return errorResult(err)
			}
			id, err := s.chronicle.RecordLearning(whatHappened, whatLearned, appliesTo, s.sessionID)
			if err != nil {
				return errorResult(err)
			}
			return textResult(id)
		})
	})

	s.mcp.AddTool(mcp.NewTool("check_mistakes",
		mcp.WithDescription("Score recorded learnings by token overlap against a context string."),
		mcp.WithString("context", mcp.Required()),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			queryCtx, err := argString(args, "context", true)
			if err != nil {
				return errorResult(err)
			}
			learnings, err := s.chronicle.CheckMistakes(queryCtx, 10)
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(learnings)
		})
	})

	s.mcp.AddTool(mcp.NewTool("record_open_thread",
		mcp.WithDescription("Record an unresolved open thread."),
		mcp.WithString("question", mcp.Required()),
		mcp.WithString("context"),
		mcp.WithString("domain", mcp.Required()),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			question, err := argString(args, "question", true)
			if err != nil {
				return errorResult(err)
			}
			domain, err := argString(args, "domain", true)
			if err != nil {
				return errorResult(err)
			}
			threadCtx, _ := argString(args, "context", false)
			id, err := s.chronicle.RecordOpenThread(question, threadCtx, domain, s.sessionID)
			if err != nil {
				return errorResult(err)
			}
			return textResult(id)
		})
	})

	s.mcp.AddTool(mcp.NewTool("resolve_thread",
		mcp.WithDescription("Resolve an open thread matching a question fragment, emitting a companion ground-truth insight."),
		mcp.WithString("domain", mcp.Required()),
		mcp.WithString("question_fragment", mcp.Required()),
		mcp.WithString("resolution", mcp.Required()),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			domain, err := argString(args, "domain", true)
			if err != nil {
				return errorResult(err)
			}
			fragment, err := argString(args, "question_fragment", true)
			if err != nil {
				return errorResult(err)
			}
			resolution, err := argString(args, "resolution", true)
			if err != nil {
				return errorResult(err)
			}
			id, err := s.chronicle.ResolveThread(domain, fragment, resolution, s.sessionID)
			if err != nil {
				return errorResult(err)
			}
			return textResult(id)
		})
	})

	s.mcp.AddTool(mcp.NewTool("get_open_threads",
		mcp.WithDescription("List open threads, optionally filtered to unresolved only."),
		mcp.WithString("domain"),
		mcp.WithBoolean("unresolved_only"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			domain, _ := argString(args, "domain", false)
			threads, err := s.chronicle.GetOpenThreads(domain, argBool(args, "unresolved_only", false))
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(threads)
		})
	})

	s.mcp.AddTool(mcp.NewTool("get_inheritable_context",
		mcp.WithDescription("Assemble the porous inheritance package: ground truths, flagged hypotheses, open threads."),
		mcp.WithNumber("limit"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			result, err := s.chronicle.GetInheritableContext(argInt(args, "limit", 20))
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(result)
		})
	})
}

func (s *Surface) registerSpiralTools() {
	s.mcp.AddTool(mcp.NewTool("spiral_status",
		mcp.WithDescription("Return the current spiral session snapshot."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			snapshot, err := s.spiral.Status(s.sessionID)
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(snapshot)
		})
	})

	s.mcp.AddTool(mcp.NewTool("spiral_reflect",
		mcp.WithDescription("Append an observation, advancing phase per the reflection-depth threshold."),
		mcp.WithString("observation", mcp.Required()),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			observation, err := argString(args, "observation", true)
			if err != nil {
				return errorResult(err)
			}
			snapshot, err := s.spiral.Reflect(s.sessionID, observation)
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(snapshot)
		})
	})

	s.mcp.AddTool(mcp.NewTool("spiral_inherit",
		mcp.WithDescription("Start a new session inheriting ground truths and open threads from a prior session."),
		mcp.WithString("session_id", mcp.Description("Source session; most recent if omitted.")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			sourceID, _ := argString(args, "session_id", false)
			snapshot, err := s.spiral.Inherit(s.sessionID, sourceID)
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(snapshot)
		})
	})
}

func (s *Surface) registerCompactionTools() {
	s.mcp.AddTool(mcp.NewTool("store_compaction_summary",
		mcp.WithDescription("Append a structured session summary to the bounded compaction ring."),
		mcp.WithString("summary_text", mcp.Required()),
		mcp.WithArray("key_points"),
		mcp.WithArray("active_tasks"),
		mcp.WithArray("recent_breakthroughs"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			args := argsOf(request)
			summaryText, err := argString(args, "summary_text", true)
			if err != nil {
				return errorResult(err)
			}
			keyPoints, _ := argStringSlice(args, "key_points")
			activeTasks, _ := argStringSlice(args, "active_tasks")
			breakthroughs, _ := argStringSlice(args, "recent_breakthroughs")

			stored, err := s.compaction.Store(compaction.Summary{
				SummaryText:         summaryText,
				SessionID:           s.sessionID,
				KeyPoints:           keyPoints,
				ActiveTasks:         activeTasks,
				RecentBreakthroughs: breakthroughs,
			})
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(stored)
		})
	})

	s.mcp.AddTool(mcp.NewTool("get_compaction_context",
		mcp.WithDescription("Return all entries currently in the compaction ring, chronological order."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			entries, err := s.compaction.GetContext()
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(entries)
		})
	})

	s.mcp.AddTool(mcp.NewTool("get_compaction_stats",
		mcp.WithDescription("Return compaction buffer occupancy and the monotonic compaction counter."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
			stats, err := s.compaction.GetStats()
			if err != nil {
				return errorResult(err)
			}
			return jsonResult(stats.Wire())
		})
	})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
