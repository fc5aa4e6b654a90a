package dynamodb

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"
	"github.com/w-h-a/triage/repository"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/w-h-a/triage/repository/dynamodb"

	codeUnknown       = "Unknown"
	codeSerialization = "SerializationError"
)

// API is the part of *dynamodb.Client the repository talks to.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type dynamodbRepository struct {
	options repository.Options
	client  API
	tracer  trace.Tracer
}

func (r *dynamodbRepository) Save(ctx context.Context, record repository.Record) (repository.Record, error) {
	patientId := record.PatientId()

	ctx, span := r.startSpan(ctx, "dynamodb."+repository.OperationPutItem, patientId)
	defer span.End()

	converted, err := repository.ToDecimalRecord(record)
	if err != nil {
		return nil, r.fail(ctx, span, "save_triage", repository.OperationPutItem, patientId, codeSerialization, err)
	}

	item, err := marshalItem(converted)
	if err != nil {
		return nil, r.fail(ctx, span, "save_triage", repository.OperationPutItem, patientId, codeSerialization, err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.options.Table),
		Item:      item,
	}); err != nil {
		return nil, r.fail(ctx, span, "save_triage", repository.OperationPutItem, patientId, "", err)
	}

	r.options.Logger.InfoContext(
		ctx,
		"triage saved",
		"action", "save_triage",
		"operation", repository.OperationPutItem,
		"patient_id", patientId,
		"triage_id", record.TriageId(),
		"status", "success",
	)

	return record, nil
}

func (r *dynamodbRepository) ListByPatient(ctx context.Context, patientId string, opts ...repository.ListOption) ([]repository.Record, error) {
	options := repository.NewListOptions(opts...)

	if options.Limit < 1 {
		return []repository.Record{}, nil
	}

	limit := options.Limit
	if limit > math.MaxInt32 {
		limit = math.MaxInt32
	}

	ctx, span := r.startSpan(ctx, "dynamodb."+repository.OperationQuery, patientId)
	defer span.End()

	keyCond := expression.Key(repository.PatientIdKey).Equal(expression.Value(patientId))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, r.fail(ctx, span, "get_triage_by_patient", repository.OperationQuery, patientId, codeSerialization, err)
	}

	rsp, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.options.Table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, r.fail(ctx, span, "get_triage_by_patient", repository.OperationQuery, patientId, "", err)
	}

	records := make([]repository.Record, 0, len(rsp.Items))

	for _, item := range rsp.Items {
		rec, err := unmarshalItem(item)
		if err != nil {
			return nil, r.fail(ctx, span, "get_triage_by_patient", repository.OperationQuery, patientId, codeSerialization, err)
		}
		records = append(records, rec)
	}

	span.SetAttributes(attribute.Int("triage.results_count", len(records)))

	r.options.Logger.InfoContext(
		ctx,
		"triages listed",
		"action", "get_triage_by_patient",
		"operation", repository.OperationQuery,
		"patient_id", patientId,
		"results_count", len(records),
		"status", "success",
	)

	return records, nil
}

func (r *dynamodbRepository) startSpan(ctx context.Context, name string, patientId string) (context.Context, trace.Span) {
	return r.tracer.Start(
		ctx,
		name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "dynamodb"),
			attribute.String("aws.dynamodb.table_names", r.options.Table),
			attribute.String("triage.patient_id", patientId),
		),
	)
}

// fail logs the backend failure once and flattens it into a StorageError.
// An empty code means the code comes from the backend error itself.
func (r *dynamodbRepository) fail(ctx context.Context, span trace.Span, action string, operation string, patientId string, code string, err error) error {
	message := err.Error()

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if len(code) == 0 {
			code = apiErr.ErrorCode()
		}
		if len(apiErr.ErrorMessage()) > 0 {
			message = apiErr.ErrorMessage()
		}
	}

	if len(code) == 0 {
		code = codeUnknown
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, message)

	r.options.Logger.ErrorContext(
		ctx,
		"triage storage failure",
		"action", action,
		"operation", operation,
		"patient_id", patientId,
		"error_code", code,
		"error_message", message,
		"status", "failure",
	)

	return repository.NewStorageError(operation, message, err)
}

func NewRepository(opts ...repository.Option) repository.Repository {
	options := repository.NewOptions(opts...)

	r := &dynamodbRepository{
		options: options,
		tracer:  otel.Tracer(tracerName),
	}

	if client, ok := ClientFrom(options.Context); ok {
		r.client = client
		return r
	}

	var loadOpts []func(*config.LoadOptions) error
	if len(options.Region) > 0 {
		loadOpts = append(loadOpts, config.WithRegion(options.Region))
	}

	cfg, err := config.LoadDefaultConfig(options.Context, loadOpts...)
	if err != nil {
		detail := "failed to load aws config for dynamodb repository"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	r.client = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if len(options.Location) > 0 {
			o.BaseEndpoint = aws.String(options.Location)
		}
		o.HTTPClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	})

	return r
}
