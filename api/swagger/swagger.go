package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Presence API",
        "description": "Typed data gateway over the school presence store",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Client credential tokens"},
        {"name": "Gateway", "description": "Model operations, transactions and exports"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Liveness probe",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Observability"],
                "summary": "Readiness probe",
                "description": "Pings the database",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Ready", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Database unreachable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/token": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Issue gateway access token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/$models": {
            "get": {
                "tags": ["Gateway"],
                "summary": "List models and operations",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/{model}/{operation}": {
            "post": {
                "tags": ["Gateway"],
                "summary": "Run a model operation",
                "description": "findUnique, findUniqueOrThrow, findFirst, findFirstOrThrow, findMany, create, createMany, createManyAndReturn, update, updateMany, upsert, delete, deleteMany, count, aggregate, groupBy",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "model", "required": true, "type": "string"},
                    {"in": "path", "name": "operation", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "schema": {"$ref": "#/definitions/OperationArgs"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Record not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Constraint violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/$transaction": {
            "post": {
                "tags": ["Gateway"],
                "summary": "Run operations atomically",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/BatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "Results in order", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "Transaction timed out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/$export/{model}": {
            "post": {
                "tags": ["Gateway"],
                "summary": "Export a model as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "path", "name": "model", "required": true, "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]},
                    {"in": "body", "name": "payload", "schema": {"$ref": "#/definitions/OperationArgs"}}
                ],
                "responses": {
                    "200": {"description": "Rendered file"},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "TokenRequest": {
            "type": "object",
            "required": ["grant_type", "client_id", "client_secret"],
            "properties": {
                "grant_type": {"type": "string", "enum": ["client_credentials"]},
                "client_id": {"type": "string"},
                "client_secret": {"type": "string"}
            }
        },
        "OperationArgs": {
            "type": "object",
            "properties": {
                "where": {"type": "object"},
                "data": {"type": "object"},
                "create": {"type": "object"},
                "update": {"type": "object"},
                "orderBy": {"type": "object"},
                "cursor": {"type": "object"},
                "skip": {"type": "integer"},
                "take": {"type": "integer"},
                "distinct": {"type": "array", "items": {"type": "string"}},
                "select": {"type": "object"},
                "include": {"type": "object"},
                "by": {"type": "array", "items": {"type": "string"}},
                "having": {"type": "object"},
                "skipDuplicates": {"type": "boolean"},
                "_count": {"type": "object"},
                "_avg": {"type": "object"},
                "_sum": {"type": "object"},
                "_min": {"type": "object"},
                "_max": {"type": "object"}
            }
        },
        "BatchStep": {
            "type": "object",
            "required": ["model", "operation"],
            "properties": {
                "model": {"type": "string"},
                "operation": {"type": "string"},
                "args": {"$ref": "#/definitions/OperationArgs"}
            }
        },
        "BatchRequest": {
            "type": "object",
            "required": ["operations"],
            "properties": {
                "operations": {"type": "array", "items": {"$ref": "#/definitions/BatchStep"}},
                "isolationLevel": {"type": "string", "enum": ["ReadUncommitted", "ReadCommitted", "RepeatableRead", "Serializable"]},
                "maxWait": {"type": "integer", "description": "milliseconds"},
                "timeout": {"type": "integer", "description": "milliseconds"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "meta": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
