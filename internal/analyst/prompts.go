package analyst

import (
	"bytes"
	"fmt"
	"text/template"
)

var askPrompt = template.Must(template.New("ask").Parse(
	`You are a financial analyst specializing in stock data analysis.
You are provided with {{.Symbol}} stock data in CSV format. The data contains OHLCV data, support and resistance levels, and direction.
Your task is to answer questions about the data accurately and concisely.

Stock Data:
{{.StockData}}

Question: {{.Question}}

Answer:`))

var forecastPrompt = template.Must(template.New("forecast").Parse(
	`You are an expert financial analyst specializing in predicting stock market trends.

You will use the provided historical stock data to predict future trends.  Assess the data for patterns such as moving averages, support and resistance levels, and volume changes.

Historical Data: {{.HistoricalData}}

Based on this data, provide a prediction of future stock trends and a confidence level for your prediction.

Output in JSON format.
`))

// Field describes one string property of a structured model response.
type Field struct {
	Name        string
	Description string
}

// Schema describes the JSON object a prompt must produce.
type Schema struct {
	Name   string
	Fields []Field
}

var answerSchema = Schema{
	Name: "AnalyzeStockDataOutput",
	Fields: []Field{
		{Name: "answer", Description: "The answer to the question about the stock data."},
	},
}

var forecastSchema = Schema{
	Name: "PredictStockTrendsOutput",
	Fields: []Field{
		{Name: "trendPrediction", Description: "A prediction of future stock trends based on the historical data."},
		{Name: "confidenceLevel", Description: "A level of confidence in percentage about the trend prediction."},
	},
}

func render(t *template.Template, data any) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}

// TemplateQuestions returns canned questions for the chat panel.
func TemplateQuestions(symbol string) []string {
	return []string{
		fmt.Sprintf("What was the highest price %s reached in this dataset?", symbol),
		"How many days was the direction 'LONG'?",
		"What was the average trading volume?",
		fmt.Sprintf("On which date did %s have the largest price change in a single day?", symbol),
		"What are the support and resistance levels for the most recent day?",
	}
}
