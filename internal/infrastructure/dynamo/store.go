package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-event-registration/internal/config"
	"github.com/go-event-registration/internal/domain"
)

// Export keys, matching the file store's collection names.
const (
	exportTransactions     = "transactions.json"
	exportUPIVerifications = "upi-verifications.json"
	exportRegistrations    = "registrations.json"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store keeps the registration collections in three DynamoDB tables. It offers
// the same operations as the file store; multi-record writes go through
// TransactWriteItems so a registration commit is all-or-nothing.
type Store struct {
	client API
	tables config.DynamoTables
}

func NewStore(client API, tables config.DynamoTables) *Store {
	return &Store{client: client, tables: tables}
}

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrPersistence)
}

func registrationItem(r *domain.Registration) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return nil, fmt.Errorf("marshal registration: %w", err)
	}
	if r.TeamID != domain.NoTeam {
		item[fieldLeaderKey] = &types.AttributeValueMemberS{Value: leaderKey(r.StudentDetails.Email, r.EventKey)}
	}
	return item, nil
}

func putNew(table, keyField string, item map[string]types.AttributeValue) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{
			"#k": keyField,
		},
	}}
}

// commitItems builds the transactional writes of a registration commit and
// returns the index of the UPI reservation item, or -1 when there is none.
func (s *Store) commitItems(c domain.RegistrationCommit) ([]types.TransactWriteItem, int, error) {
	if c.Registration == nil || c.Transaction == nil {
		return nil, -1, fmt.Errorf("incomplete registration commit: %w", domain.ErrValidation)
	}
	txItem, err := attributevalue.MarshalMap(c.Transaction)
	if err != nil {
		return nil, -1, fmt.Errorf("marshal transaction: %w", err)
	}
	items := []types.TransactWriteItem{putNew(s.tables.Transactions, fieldTransactionID, txItem)}

	if c.Verification != nil {
		verItem, err := attributevalue.MarshalMap(c.Verification)
		if err != nil {
			return nil, -1, fmt.Errorf("marshal verification: %w", err)
		}
		items = append(items, putNew(s.tables.UPIVerifications, fieldVerificationID, verItem))
	}

	lockIdx := -1
	if upi := c.Registration.Payment.Verification.UPITransactionID; upi != "" {
		lockIdx = len(items)
		items = append(items, putNew(s.tables.UPIVerifications, fieldVerificationID, map[string]types.AttributeValue{
			fieldVerificationID: &types.AttributeValueMemberS{Value: upiLockPrefix + upi},
			fieldRegistrationID: &types.AttributeValueMemberS{Value: c.Registration.RegistrationID},
		}))
	}

	regItem, err := registrationItem(c.Registration)
	if err != nil {
		return nil, -1, err
	}
	items = append(items, putNew(s.tables.Registrations, fieldRegistrationID, regItem))
	return items, lockIdx, nil
}

// commitError maps a failed transaction onto the domain taxonomy: losing the
// UPI reservation is a conflict, anything else is a persistence failure.
func commitError(err error, lockIdx int, upi string) error {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) && lockIdx >= 0 && lockIdx < len(tce.CancellationReasons) &&
		aws.ToString(tce.CancellationReasons[lockIdx].Code) == "ConditionalCheckFailed" {
		return fmt.Errorf("UPI transaction %s already used by another registration: %w", upi, domain.ErrConflict)
	}
	return persistence("commit registration", err)
}

func (s *Store) CommitRegistration(ctx context.Context, c domain.RegistrationCommit) error {
	items, lockIdx, err := s.commitItems(c)
	if err != nil {
		return err
	}
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return commitError(err, lockIdx, c.Registration.Payment.Verification.UPITransactionID)
	}
	return nil
}

func (s *Store) PutVerification(ctx context.Context, v *domain.UPIVerification) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tables.UPIVerifications),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{"#k": fieldVerificationID},
	})
	if err != nil {
		return persistence("put verification", err)
	}
	return nil
}

func (s *Store) GetVerification(ctx context.Context, verificationID string) (*domain.UPIVerification, error) {
	if strings.HasPrefix(verificationID, upiLockPrefix) {
		return nil, fmt.Errorf("verification %s: %w", verificationID, domain.ErrNotFound)
	}
	var v domain.UPIVerification
	if err := s.getItem(ctx, s.tables.UPIVerifications, fieldVerificationID, verificationID, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) FindVerificationByUPI(ctx context.Context, upiTransactionID string) (*domain.UPIVerification, error) {
	found, err := queryIndex[domain.UPIVerification](ctx, s.client, s.tables.UPIVerifications, indexUPI, fieldUPITransactionID, upiTransactionID, 1)
	if err != nil {
		return nil, persistence("find verification", err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("verification for UPI %s: %w", upiTransactionID, domain.ErrNotFound)
	}
	return &found[0], nil
}

// ApplyReview advances a claim and every transaction carrying it in one
// transaction, conditioned on the claim still being in the status it was read in.
func (s *Store) ApplyReview(ctx context.Context, verificationID string, next domain.VerificationStatus, at time.Time) (*domain.UPIVerification, error) {
	v, err := s.GetVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	prev := v.Status
	if err := v.Advance(next, at); err != nil {
		return nil, err
	}

	txs, err := scanAll[domain.Transaction](ctx, s.client, &dynamodb.ScanInput{
		TableName:                aws.String(s.tables.Transactions),
		FilterExpression:         aws.String("#vd.#vid = :id"),
		ExpressionAttributeNames: map[string]string{"#vd": fieldVerificationData, "#vid": fieldVerificationID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: verificationID},
		},
	})
	if err != nil {
		return nil, persistence("find review transactions", err)
	}

	verItem, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("marshal verification: %w", err)
	}
	prevAV, err := attributevalue.Marshal(prev)
	if err != nil {
		return nil, err
	}
	items := []types.TransactWriteItem{{Put: &types.Put{
		TableName:                 aws.String(s.tables.UPIVerifications),
		Item:                      verItem,
		ConditionExpression:       aws.String("#st = :prev"),
		ExpressionAttributeNames:  map[string]string{"#st": fieldStatus},
		ExpressionAttributeValues: map[string]types.AttributeValue{":prev": prevAV},
	}}}
	for _, tx := range txs {
		ue, err := buildUpdateExpr(map[string]interface{}{
			fieldStatus:           next.TransactionStatus(),
			fieldVerificationData: v,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:                 aws.String(s.tables.Transactions),
			Key:                       strKey(fieldTransactionID, tx.TransactionID),
			UpdateExpression:          aws.String(ue.Expr),
			ExpressionAttributeNames:  ue.Names,
			ExpressionAttributeValues: ue.Values,
		}})
	}

	if _, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && len(tce.CancellationReasons) > 0 &&
			aws.ToString(tce.CancellationReasons[0].Code) == "ConditionalCheckFailed" {
			return nil, fmt.Errorf("claim %s changed during review: %w", verificationID, domain.ErrConflict)
		}
		return nil, persistence("apply review", err)
	}
	return v, nil
}

func (s *Store) FindTeam(ctx context.Context, leaderEmail, eventKey string) (string, error) {
	found, err := queryIndex[domain.Registration](ctx, s.client, s.tables.Registrations, indexLeader, fieldLeaderKey, leaderKey(leaderEmail, eventKey), 1)
	if err != nil {
		return "", persistence("find team", err)
	}
	if len(found) == 0 || found[0].TeamID == domain.NoTeam {
		return "", fmt.Errorf("team for %s / %s: %w", leaderEmail, eventKey, domain.ErrNotFound)
	}
	return found[0].TeamID, nil
}

func (s *Store) ListByTeam(ctx context.Context, teamID string) ([]domain.Registration, error) {
	if teamID == domain.NoTeam {
		return nil, nil
	}
	regs, err := queryIndex[domain.Registration](ctx, s.client, s.tables.Registrations, indexTeam, fieldTeamID, teamID, 0)
	if err != nil {
		return nil, persistence("list team", err)
	}
	return regs, nil
}

// UpdateRoster overwrites the roster on every registration of teamID.
func (s *Store) UpdateRoster(ctx context.Context, teamID string, roster domain.Roster) error {
	regs, err := s.ListByTeam(ctx, teamID)
	if err != nil {
		return err
	}
	ue, err := buildUpdateExpr(map[string]interface{}{fieldRoster: roster})
	if err != nil {
		return err
	}
	for _, r := range regs {
		if err := s.update(ctx, r.RegistrationID, ue); err != nil {
			return persistence("update roster", err)
		}
	}
	return nil
}

func (s *Store) ListUnsynced(ctx context.Context) ([]domain.Registration, error) {
	regs, err := scanAll[domain.Registration](ctx, s.client, &dynamodb.ScanInput{
		TableName:                aws.String(s.tables.Registrations),
		FilterExpression:         aws.String("attribute_not_exists(#s)"),
		ExpressionAttributeNames: map[string]string{"#s": fieldSyncedAt},
	})
	if err != nil {
		return nil, persistence("list unsynced", err)
	}
	return regs, nil
}

func (s *Store) MarkSynced(ctx context.Context, registrationID string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldSyncedAt: at.UTC()})
	if err != nil {
		return err
	}
	if err := s.update(ctx, registrationID, ue); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("registration %s: %w", registrationID, domain.ErrNotFound)
		}
		return persistence("mark synced", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := s.getItem(ctx, s.tables.Transactions, fieldTransactionID, transactionID, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Export scans the three tables and encodes them the way the file store lays
// out its collections.
func (s *Store) Export(ctx context.Context) (map[string][]byte, error) {
	txs, err := scanAll[domain.Transaction](ctx, s.client, &dynamodb.ScanInput{TableName: aws.String(s.tables.Transactions)})
	if err != nil {
		return nil, persistence("export transactions", err)
	}
	vers, err := scanAll[domain.UPIVerification](ctx, s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tables.UPIVerifications),
		FilterExpression:          aws.String("NOT begins_with(#k, :lock)"),
		ExpressionAttributeNames:  map[string]string{"#k": fieldVerificationID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":lock": &types.AttributeValueMemberS{Value: upiLockPrefix}},
	})
	if err != nil {
		return nil, persistence("export verifications", err)
	}
	regs, err := scanAll[domain.Registration](ctx, s.client, &dynamodb.ScanInput{TableName: aws.String(s.tables.Registrations)})
	if err != nil {
		return nil, persistence("export registrations", err)
	}

	out := make(map[string][]byte, 3)
	for name, v := range map[string]any{
		exportTransactions:     nonNil(txs),
		exportUPIVerifications: nonNil(vers),
		exportRegistrations:    nonNil(regs),
	} {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}

func (s *Store) update(ctx context.Context, registrationID string, ue *updateExpr) error {
	names := map[string]string{"#pk": fieldRegistrationID}
	for k, v := range ue.Names {
		names[k] = v
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Registrations),
		Key:                       strKey(fieldRegistrationID, registrationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (s *Store) getItem(ctx context.Context, table, keyField, key string, dst any) error {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       strKey(keyField, key),
	})
	if err != nil {
		return persistence("get "+keyField, err)
	}
	if out.Item == nil {
		return fmt.Errorf("%s %s: %w", keyField, key, domain.ErrNotFound)
	}
	if err := attributevalue.UnmarshalMap(out.Item, dst); err != nil {
		return persistence("decode "+keyField, err)
	}
	return nil
}

// queryIndex reads every item of a GSI partition; limit > 0 stops after the
// first page of that size.
func queryIndex[T any](ctx context.Context, client API, table, index, attr, value string, limit int32) ([]T, error) {
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
	}
	if limit > 0 {
		in.Limit = aws.Int32(limit)
	}
	var out []T
	p := dynamodb.NewQueryPaginator(client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if limit > 0 {
			break
		}
	}
	return out, nil
}

func scanAll[T any](ctx context.Context, client API, in *dynamodb.ScanInput) ([]T, error) {
	var out []T
	p := dynamodb.NewScanPaginator(client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
