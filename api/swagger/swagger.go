package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SecAware Admin API",
        "description": "Audit trail and administration service",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Audit Logs", "description": "Audit trail retrieval, export and retention"},
        {"name": "Policies", "description": "Policy lifecycle"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Sign in",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Sign out",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/admin/audit-logs": {
            "get": {
                "tags": ["Audit Logs"],
                "summary": "List audit records",
                "parameters": [
                    {"name": "user", "in": "query", "type": "string"},
                    {"name": "actionType", "in": "query", "type": "string"},
                    {"name": "resource", "in": "query", "type": "string"},
                    {"name": "severity", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "dateFrom", "in": "query", "type": "string"},
                    {"name": "dateTo", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sortBy", "in": "query", "type": "string"},
                    {"name": "sortOrder", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter"}
                }
            }
        },
        "/api/v1/admin/audit-logs/{id}": {
            "get": {
                "tags": ["Audit Logs"],
                "summary": "Get a single audit record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/admin/audit-logs/export": {
            "get": {
                "tags": ["Audit Logs"],
                "summary": "Export audit records",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "json", "pdf"]},
                    {"name": "user", "in": "query", "type": "string"},
                    {"name": "actionType", "in": "query", "type": "string"},
                    {"name": "resource", "in": "query", "type": "string"},
                    {"name": "severity", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "dateFrom", "in": "query", "type": "string"},
                    {"name": "dateTo", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "400": {"description": "Unknown format"}
                }
            }
        },
        "/api/v1/admin/audit-logs/stats": {
            "get": {
                "tags": ["Audit Logs"],
                "summary": "Aggregate statistics",
                "parameters": [
                    {"name": "period", "in": "query", "type": "string", "enum": ["24h", "7d", "30d", "90d"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/audit-logs/user/{userId}/timeline": {
            "get": {
                "tags": ["Audit Logs"],
                "summary": "Recent activity for one user",
                "parameters": [
                    {"name": "userId", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/audit-logs/cleanup": {
            "delete": {
                "tags": ["Audit Logs"],
                "summary": "Purge records older than a cutoff",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CleanupRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Cutoff below retention floor"}
                }
            }
        },
        "/api/v1/admin/policies/{id}/publish": {
            "post": {
                "tags": ["Policies"],
                "summary": "Publish a draft policy",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition"}
                }
            }
        },
        "/api/v1/admin/policies/{id}/archive": {
            "post": {
                "tags": ["Policies"],
                "summary": "Archive a published policy",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CleanupRequest": {
            "type": "object",
            "properties": {
                "olderThanDays": {"type": "integer"}
            },
            "required": ["olderThanDays"]
        },
        "AuditMetadata": {
            "type": "object",
            "properties": {
                "ipAddress": {"type": "string"},
                "userAgent": {"type": "string"},
                "method": {"type": "string"},
                "endpoint": {"type": "string"},
                "responseStatus": {"type": "integer"},
                "executionTime": {"type": "integer"},
                "sessionId": {"type": "string"}
            }
        },
        "AuditRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "userId": {"type": "string"},
                "userEmail": {"type": "string"},
                "action": {"type": "string"},
                "actionType": {"type": "string"},
                "resource": {"type": "string"},
                "resourceId": {"type": "string"},
                "details": {"type": "string"},
                "changesBefore": {"type": "object"},
                "changesAfter": {"type": "object"},
                "metadata": {"$ref": "#/definitions/AuditMetadata"},
                "severity": {"type": "string"},
                "status": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "createdAt": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
