package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"slimmom/internal/domain"
)

var withoutEntries = bson.D{{Key: "entries", Value: 0}}

// InsertEntry pushes the entry into its day document and bumps the total in
// the same single-document update.
func (s *Store) InsertEntry(ctx context.Context, e domain.DiaryEntry) error {
	m := toEntryModel(e)
	_, err := s.db.Collection(colDays).UpdateOne(ctx,
		bson.M{"_id": dayKey(e.UserID, e.Day)},
		bson.M{
			"$setOnInsert": bson.M{"user_id": e.UserID, "day": e.Day.String(), "needs_reconcile": false},
			"$push":        bson.M{"entries": m},
			"$inc":         bson.M{"total_centi": m.SnapshotCenti, "entry_count": 1},
			"$set":         bson.M{"updated_at": now()},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return mapErr("insert entry", err)
}

// DeleteEntry pulls the entry from its day document and subtracts its
// snapshot, clamping at zero, in one pipeline update. The filter requires
// the entry to still be present, so of two concurrent removals only one
// matches.
func (s *Store) DeleteEntry(ctx context.Context, userID, entryID string) (*domain.DiaryEntry, error) {
	coll := s.db.Collection(colDays)

	var doc dayModel
	err := coll.FindOne(ctx,
		bson.M{"entries._id": entryID},
		options.FindOne().SetProjection(bson.D{
			{Key: "user_id", Value: 1},
			{Key: "day", Value: 1},
			{Key: "entries", Value: bson.M{"$elemMatch": bson.M{"_id": entryID}}},
		}),
	).Decode(&doc)
	if isNoDocuments(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapErr("delete entry", err)
	}
	if doc.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if len(doc.Entries) != 1 {
		return nil, domain.ErrNotFound
	}
	day, err := domain.ParseDay(doc.Day)
	if err != nil {
		return nil, mapErr("delete entry", err)
	}
	removed, err := fromEntryModel(userID, day, doc.Entries[0])
	if err != nil {
		return nil, mapErr("delete entry", err)
	}

	x := doc.Entries[0].SnapshotCenti
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "total_centi", Value: bson.M{"$max": bson.A{bson.M{"$subtract": bson.A{"$total_centi", x}}, 0}}},
			{Key: "entry_count", Value: bson.M{"$max": bson.A{bson.M{"$subtract": bson.A{"$entry_count", 1}}, 0}}},
			{Key: "needs_reconcile", Value: bson.M{"$or": bson.A{
				"$needs_reconcile",
				bson.M{"$lt": bson.A{"$total_centi", x}},
				bson.M{"$lt": bson.A{"$entry_count", 1}},
			}}},
			{Key: "entries", Value: bson.M{"$filter": bson.M{
				"input": "$entries",
				"cond":  bson.M{"$ne": bson.A{"$$this._id", entryID}},
			}}},
			{Key: "updated_at", Value: now()},
		}}},
	}
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": doc.ID, "user_id": userID, "entries._id": entryID},
		pipeline,
	)
	if err != nil {
		return nil, mapErr("delete entry", err)
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrNotFound
	}
	return &removed, nil
}

// EntriesForDay returns the entries of one day in creation order.
func (s *Store) EntriesForDay(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, error) {
	var doc dayModel
	err := s.db.Collection(colDays).FindOne(ctx, bson.M{"_id": dayKey(userID, day)}).Decode(&doc)
	if isNoDocuments(err) {
		return []domain.DiaryEntry{}, nil
	}
	if err != nil {
		return nil, mapErr("entries for day", err)
	}
	out := make([]domain.DiaryEntry, 0, len(doc.Entries))
	for _, m := range doc.Entries {
		e, err := fromEntryModel(userID, day, m)
		if err != nil {
			return nil, mapErr("entries for day", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// AllEntries returns every entry of a user, newest day and newest entry first.
func (s *Store) AllEntries(ctx context.Context, userID string) ([]domain.DiaryEntry, error) {
	cur, err := s.db.Collection(colDays).Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "day", Value: -1}}),
	)
	if err != nil {
		return nil, mapErr("all entries", err)
	}
	var docs []dayModel
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr("all entries", err)
	}

	out := make([]domain.DiaryEntry, 0)
	for _, doc := range docs {
		day, err := domain.ParseDay(doc.Day)
		if err != nil {
			return nil, mapErr("all entries", err)
		}
		for i := len(doc.Entries) - 1; i >= 0; i-- {
			e, err := fromEntryModel(userID, day, doc.Entries[i])
			if err != nil {
				return nil, mapErr("all entries", err)
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// DayLedger decodes the day document once; entries and counters live in
// the same document, so they are always consistent.
func (s *Store) DayLedger(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, domain.DailyAggregate, error) {
	var doc dayModel
	err := s.db.Collection(colDays).FindOne(ctx, bson.M{"_id": dayKey(userID, day)}).Decode(&doc)
	if isNoDocuments(err) {
		return []domain.DiaryEntry{}, domain.EmptyAggregate(userID, day), nil
	}
	if err != nil {
		return nil, domain.DailyAggregate{}, mapErr("day ledger", err)
	}
	entries := make([]domain.DiaryEntry, 0, len(doc.Entries))
	for _, m := range doc.Entries {
		e, err := fromEntryModel(userID, day, m)
		if err != nil {
			return nil, domain.DailyAggregate{}, mapErr("day ledger", err)
		}
		entries = append(entries, e)
	}
	agg, err := doc.aggregate()
	if err != nil {
		return nil, domain.DailyAggregate{}, mapErr("day ledger", err)
	}
	return entries, agg, nil
}

// Aggregate returns the stored aggregate or an empty one.
func (s *Store) Aggregate(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, error) {
	var doc dayModel
	err := s.db.Collection(colDays).FindOne(ctx,
		bson.M{"_id": dayKey(userID, day)},
		options.FindOne().SetProjection(withoutEntries),
	).Decode(&doc)
	if isNoDocuments(err) {
		return domain.EmptyAggregate(userID, day), nil
	}
	if err != nil {
		return domain.DailyAggregate{}, mapErr("aggregate", err)
	}
	a, err := doc.aggregate()
	return a, mapErr("aggregate", err)
}

// AggregatesBetween returns stored aggregates for from..to, oldest first.
func (s *Store) AggregatesBetween(ctx context.Context, userID string, from, to domain.Day) ([]domain.DailyAggregate, error) {
	cur, err := s.db.Collection(colDays).Find(ctx,
		bson.M{"user_id": userID, "day": bson.M{"$gte": from.String(), "$lte": to.String()}},
		options.Find().SetSort(bson.D{{Key: "day", Value: 1}}).SetProjection(withoutEntries),
	)
	if err != nil {
		return nil, mapErr("aggregates between", err)
	}
	var docs []dayModel
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr("aggregates between", err)
	}
	out := make([]domain.DailyAggregate, 0, len(docs))
	for i := range docs {
		a, err := docs[i].aggregate()
		if err != nil {
			return nil, mapErr("aggregates between", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// RecomputeAggregate rewrites total and count from the embedded entries in
// one pipeline update and returns the document as it was before.
func (s *Store) RecomputeAggregate(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, domain.DailyAggregate, error) {
	ts := now()
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "total_centi", Value: bson.M{"$sum": "$entries.snapshot_centi"}},
			{Key: "entry_count", Value: bson.M{"$size": bson.M{"$ifNull": bson.A{"$entries", bson.A{}}}}},
			{Key: "needs_reconcile", Value: false},
			{Key: "updated_at", Value: ts},
		}}},
	}
	var doc dayModel
	err := s.db.Collection(colDays).FindOneAndUpdate(ctx,
		bson.M{"_id": dayKey(userID, day)},
		pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&doc)
	if isNoDocuments(err) {
		empty := domain.EmptyAggregate(userID, day)
		return empty, empty, nil
	}
	if err != nil {
		return domain.DailyAggregate{}, domain.DailyAggregate{}, mapErr("reconcile", err)
	}

	before, err := doc.aggregate()
	if err != nil {
		return domain.DailyAggregate{}, domain.DailyAggregate{}, mapErr("reconcile", err)
	}
	// The update ran against exactly this document, so its entries are the
	// ones that were summed.
	var total int64
	for _, e := range doc.Entries {
		total += e.SnapshotCenti
	}
	after := domain.EmptyAggregate(userID, day)
	after.TotalCalories = fromCenti(total)
	after.EntryCount = len(doc.Entries)
	after.UpdatedAt = ts
	return before, after, nil
}

// FlaggedAggregates lists aggregates awaiting reconciliation.
func (s *Store) FlaggedAggregates(ctx context.Context, limit int) ([]domain.AggregateKey, error) {
	cur, err := s.db.Collection(colDays).Find(ctx,
		bson.M{"needs_reconcile": true},
		options.Find().
			SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "day", Value: 1}}).
			SetLimit(int64(limit)).
			SetProjection(withoutEntries),
	)
	if err != nil {
		return nil, mapErr("flagged aggregates", err)
	}
	var docs []dayModel
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr("flagged aggregates", err)
	}
	out := make([]domain.AggregateKey, 0, len(docs))
	for _, doc := range docs {
		day, err := domain.ParseDay(doc.Day)
		if err != nil {
			return nil, mapErr("flagged aggregates", err)
		}
		out = append(out, domain.AggregateKey{UserID: doc.UserID, Day: day})
	}
	return out, nil
}
