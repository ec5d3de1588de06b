// Package knowledge mirrors assessment outcomes into a Neo4j concept graph.
// Each learner is linked to the concepts an assessment touched, with the
// per-concept accuracy on the relation, so weak spots can be queried across
// topics and learners.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/profai/assessment"
)

// Graph bundles a driver so callers can hold one value instead of threading
// the driver through every call.
type Graph struct {
	driver neo4j.DriverWithContext
}

func NewGraph(driver neo4j.DriverWithContext) *Graph {
	return &Graph{driver: driver}
}

func (g *Graph) SyncAssessment(ctx context.Context, userID, topic string, report assessment.CompetencyReport) error {
	return SyncAssessment(ctx, g.driver, userID, topic, report)
}

func (g *Graph) WeakestConcepts(ctx context.Context, userID string, limit int) ([]ConceptInsight, error) {
	return WeakestConcepts(ctx, g.driver, userID, limit)
}

// ConceptInsight is one concept with the learner's measured accuracy.
type ConceptInsight struct {
	Concept  string  `json:"concept"`
	Accuracy float64 `json:"accuracy"`
	Gap      bool    `json:"gap"`
}

// SyncAssessment folds a competency report into the graph. Previous GAP and
// STRONG relations for the same learner and topic are replaced so the graph
// always reflects the latest assessment.
func SyncAssessment(ctx context.Context, driver neo4j.DriverWithContext, userID, topic string, report assessment.CompetencyReport) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{
			"user_id": userID,
			"topic":   topic,
			"score":   report.OverallScore,
		}

		if _, err := tx.Run(ctx, `
			MERGE (l:Learner {id: $user_id})
			MERGE (t:Topic {name: $topic})
			MERGE (l)-[a:ASSESSED_ON]->(t)
			SET a.score = $score,
			    a.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert learner and topic: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (l:Learner {id: $user_id})-[r:GAP|STRONG]->(:Concept {topic: $topic})
			DELETE r
		`, params); err != nil {
			return nil, fmt.Errorf("clear stale concept relations: %w", err)
		}

		for concept, perf := range report.ConceptPerformance {
			accuracy := 0.0
			if perf.Attempted > 0 {
				accuracy = float64(perf.Correct) / float64(perf.Attempted)
			}
			relation := "STRONG"
			if perf.Correct < perf.Attempted {
				relation = "GAP"
			}

			if _, err := tx.Run(ctx, fmt.Sprintf(`
				MATCH (l:Learner {id: $user_id}), (t:Topic {name: $topic})
				MERGE (c:Concept {name: $concept, topic: $topic})
				MERGE (t)-[:COVERS]->(c)
				MERGE (l)-[r:%s]->(c)
				SET r.accuracy = $accuracy,
				    r.attempted = $attempted,
				    r.updated_at = datetime()
			`, relation), map[string]any{
				"user_id":   userID,
				"topic":     topic,
				"concept":   concept,
				"accuracy":  accuracy,
				"attempted": perf.Attempted,
			}); err != nil {
				return nil, fmt.Errorf("upsert concept relation: %w", err)
			}
		}

		return nil, nil
	})

	return err
}

// WeakestConcepts returns the learner's lowest-accuracy concepts across all
// assessed topics, weakest first.
func WeakestConcepts(ctx context.Context, driver neo4j.DriverWithContext, userID string, limit int) ([]ConceptInsight, error) {
	if driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if limit <= 0 {
		limit = 5
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (l:Learner {id: $user_id})-[r:GAP|STRONG]->(c:Concept)
			RETURN c.name AS concept, r.accuracy AS accuracy, type(r) = 'GAP' AS gap
			ORDER BY r.accuracy ASC, c.name ASC
			LIMIT $limit
		`, map[string]any{"user_id": userID, "limit": limit})
		if err != nil {
			return nil, fmt.Errorf("run weakest concepts query: %w", err)
		}

		insights := make([]ConceptInsight, 0, limit)
		for result.Next(ctx) {
			record := result.Record()
			nameVal, _ := record.Get("concept")
			accuracyVal, _ := record.Get("accuracy")
			gapVal, _ := record.Get("gap")

			name, ok := nameVal.(string)
			if !ok {
				continue
			}
			insight := ConceptInsight{Concept: name}
			insight.Accuracy, _ = accuracyVal.(float64)
			insight.Gap, _ = gapVal.(bool)
			insights = append(insights, insight)
		}
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("read weakest concepts: %w", err)
		}
		return insights, nil
	})
	if err != nil {
		return nil, err
	}

	return out.([]ConceptInsight), nil
}
