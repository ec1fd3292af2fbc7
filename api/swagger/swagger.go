package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Inbox Manager API",
        "description": "Moderation queues over the AI email pipeline's records, with live updates.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {
            "name": "Queues",
            "description": "Queue catalog, snapshots, live streams and exports"
        },
        {
            "name": "Views",
            "description": "Live view sessions"
        },
        {
            "name": "Records",
            "description": "Moderation actions"
        },
        {
            "name": "Dashboard",
            "description": "Pipeline statistics"
        },
        {
            "name": "Connection",
            "description": "Store connection management"
        },
        {
            "name": "Observability",
            "description": "Runtime counters"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "Store connection unhealthy"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": [
                    "text/plain"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/queues": {
            "get": {
                "tags": [
                    "Queues"
                ],
                "summary": "List moderation queues",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/queues/{queue}": {
            "get": {
                "tags": [
                    "Queues"
                ],
                "summary": "Current contents of a queue",
                "parameters": [
                    {
                        "in": "path",
                        "name": "queue",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "range",
                        "type": "string",
                        "description": "Time range for windowed queues",
                        "enum": [
                            "24h",
                            "7d",
                            "30d",
                            "90d",
                            "custom"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "start",
                        "type": "string",
                        "description": "Custom range start (YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "end",
                        "type": "string",
                        "description": "Custom range end (YYYY-MM-DD)"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/queues/{queue}/stream": {
            "get": {
                "tags": [
                    "Queues"
                ],
                "summary": "Live queue updates as Server-Sent Events",
                "parameters": [
                    {
                        "in": "path",
                        "name": "queue",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "range",
                        "type": "string",
                        "description": "Time range for windowed queues",
                        "enum": [
                            "24h",
                            "7d",
                            "30d",
                            "90d",
                            "custom"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "start",
                        "type": "string",
                        "description": "Custom range start (YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "end",
                        "type": "string",
                        "description": "Custom range end (YYYY-MM-DD)"
                    }
                ],
                "produces": [
                    "text/event-stream"
                ],
                "responses": {
                    "200": {
                        "description": "text/event-stream of snapshot and ping events"
                    }
                }
            }
        },
        "/api/v1/queues/{queue}/export": {
            "get": {
                "tags": [
                    "Queues"
                ],
                "summary": "Download a queue as CSV or PDF",
                "parameters": [
                    {
                        "in": "path",
                        "name": "queue",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "format",
                        "type": "string",
                        "description": "Export format",
                        "enum": [
                            "csv",
                            "pdf"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "range",
                        "type": "string",
                        "description": "Time range for windowed queues",
                        "enum": [
                            "24h",
                            "7d",
                            "30d",
                            "90d",
                            "custom"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "start",
                        "type": "string",
                        "description": "Custom range start (YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "end",
                        "type": "string",
                        "description": "Custom range end (YYYY-MM-DD)"
                    }
                ],
                "produces": [
                    "text/csv",
                    "application/pdf"
                ],
                "responses": {
                    "200": {
                        "description": "File download"
                    }
                }
            }
        },
        "/api/v1/views/{id}": {
            "get": {
                "tags": [
                    "Views"
                ],
                "summary": "Snapshot of a live view",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "Views"
                ],
                "summary": "Close a live view",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Closed"
                    }
                }
            }
        },
        "/api/v1/views/{id}/refresh": {
            "post": {
                "tags": [
                    "Views"
                ],
                "summary": "Re-run the view query",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/views/{id}/dismiss": {
            "post": {
                "tags": [
                    "Views"
                ],
                "summary": "Dismiss the current notice of a view",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Dismissed"
                    }
                }
            }
        },
        "/api/v1/records/{id}/decision": {
            "post": {
                "tags": [
                    "Records"
                ],
                "summary": "Approve, object to or hand off a drafted reply",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/DecisionRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Updated record",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Record not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "No store connection",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/records/{id}/cancel": {
            "post": {
                "tags": [
                    "Records"
                ],
                "summary": "Cancel a drafted reply",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Updated record",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Record not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "No store connection",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/records/{id}/reply": {
            "post": {
                "tags": [
                    "Records"
                ],
                "summary": "Send a manual reply",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ReplyRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Updated record",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Record not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "No store connection",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/records/{id}/important-reply": {
            "post": {
                "tags": [
                    "Records"
                ],
                "summary": "Answer an important email",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ResponseRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Updated record",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Record not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "No store connection",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/records/{id}/escalation-reply": {
            "post": {
                "tags": [
                    "Records"
                ],
                "summary": "Answer an escalated email",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ResponseRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Updated record",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Record not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "No store connection",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/records/{id}/remove": {
            "post": {
                "tags": [
                    "Records"
                ],
                "summary": "Move a record to the recovery queue",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Updated record",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Record not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "No store connection",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/records/{id}/restore": {
            "post": {
                "tags": [
                    "Records"
                ],
                "summary": "Restore a removed or canceled record",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Updated record",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Record not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "No store connection",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/records/{id}": {
            "delete": {
                "tags": [
                    "Records"
                ],
                "summary": "Permanently delete a record",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Deleted"
                    },
                    "404": {
                        "description": "Record not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/dashboard/stats": {
            "get": {
                "tags": [
                    "Dashboard"
                ],
                "summary": "Pipeline statistics for a time range",
                "parameters": [
                    {
                        "in": "query",
                        "name": "range",
                        "type": "string",
                        "description": "Time range for windowed queues",
                        "enum": [
                            "24h",
                            "7d",
                            "30d",
                            "90d",
                            "custom"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "start",
                        "type": "string",
                        "description": "Custom range start (YYYY-MM-DD)"
                    },
                    {
                        "in": "query",
                        "name": "end",
                        "type": "string",
                        "description": "Custom range end (YYYY-MM-DD)"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/metrics/summary": {
            "get": {
                "tags": [
                    "Observability"
                ],
                "summary": "Runtime counters",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/connection": {
            "get": {
                "tags": [
                    "Connection"
                ],
                "summary": "Current store connection",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "Connection"
                ],
                "summary": "Connect to a store, replacing the current connection",
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ConnectionSettings"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "Connection"
                ],
                "summary": "Drop the store connection",
                "responses": {
                    "204": {
                        "description": "Disconnected"
                    }
                }
            }
        }
    },
    "definitions": {
        "DecisionRequest": {
            "type": "object",
            "required": [
                "permission"
            ],
            "properties": {
                "permission": {
                    "type": "string",
                    "enum": [
                        "Approval",
                        "Objection",
                        "Manual Handle"
                    ]
                },
                "feedback": {
                    "type": "string"
                }
            }
        },
        "ReplyRequest": {
            "type": "object",
            "required": [
                "reply"
            ],
            "properties": {
                "reply": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                }
            }
        },
        "ResponseRequest": {
            "type": "object",
            "required": [
                "reply"
            ],
            "properties": {
                "reply": {
                    "type": "string"
                }
            }
        },
        "ConnectionSettings": {
            "type": "object",
            "required": [
                "driver",
                "table"
            ],
            "properties": {
                "driver": {
                    "type": "string",
                    "enum": [
                        "postgres",
                        "memory"
                    ]
                },
                "table": {
                    "type": "string"
                },
                "host": {
                    "type": "string"
                },
                "port": {
                    "type": "integer"
                },
                "user": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                },
                "database": {
                    "type": "string"
                },
                "sslMode": {
                    "type": "string"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "meta": {
                    "type": "object"
                }
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
