package client

import (
	"fmt"
	"time"

	"github.com/ChronosX88/newsd/internal/connection"
	"github.com/ChronosX88/newsd/internal/models"
	"github.com/ChronosX88/newsd/internal/protocol"
)

// Client issues commands over one connection and waits for each answer.
// A Nak comes back as a protocol.ErrorCode error.
type Client struct {
	conn *connection.Connection
}

func Dial(address string, timeout time.Duration) (*Client, error) {
	conn, err := connection.Dial(address, timeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) ListNewsgroups() ([]models.Newsgroup, error) {
	params, err := c.call(protocol.CommandListNewsgroups)
	if err != nil {
		return nil, err
	}
	pairs, err := listPairs(params)
	if err != nil {
		return nil, err
	}
	groups := make([]models.Newsgroup, 0, len(pairs))
	for _, p := range pairs {
		groups = append(groups, models.Newsgroup{ID: p.id, Name: p.text})
	}
	return groups, nil
}

func (c *Client) CreateNewsgroup(name string) (int32, error) {
	params, err := c.call(protocol.CommandCreateNewsgroup, protocol.Text(name))
	if err != nil {
		return 0, err
	}
	return singleNumber(params)
}

func (c *Client) DeleteNewsgroup(id int32) error {
	_, err := c.call(protocol.CommandDeleteNewsgroup, protocol.Number(id))
	return err
}

func (c *Client) ListArticles(groupID int32) ([]models.Article, error) {
	params, err := c.call(protocol.CommandListArticles, protocol.Number(groupID))
	if err != nil {
		return nil, err
	}
	pairs, err := listPairs(params)
	if err != nil {
		return nil, err
	}
	articles := make([]models.Article, 0, len(pairs))
	for _, p := range pairs {
		articles = append(articles, models.Article{ID: p.id, GroupID: groupID, Title: p.text})
	}
	return articles, nil
}

func (c *Client) CreateArticle(groupID int32, title, author, text string) (int32, error) {
	params, err := c.call(
		protocol.CommandCreateArticle,
		protocol.Number(groupID),
		protocol.Text(title),
		protocol.Text(author),
		protocol.Text(text),
	)
	if err != nil {
		return 0, err
	}
	return singleNumber(params)
}

func (c *Client) DeleteArticle(groupID, articleID int32) error {
	_, err := c.call(protocol.CommandDeleteArticle, protocol.Number(groupID), protocol.Number(articleID))
	return err
}

func (c *Client) GetArticle(groupID, articleID int32) (models.Article, error) {
	params, err := c.call(protocol.CommandGetArticle, protocol.Number(groupID), protocol.Number(articleID))
	if err != nil {
		return models.Article{}, err
	}
	if len(params) != 3 || params[0].Type != protocol.ParamText || params[1].Type != protocol.ParamText || params[2].Type != protocol.ParamText {
		return models.Article{}, malformed(protocol.AnswerGetArticle, params)
	}
	return models.Article{
		ID:      articleID,
		GroupID: groupID,
		Title:   params[0].Text,
		Author:  params[1].Text,
		Text:    params[2].Text,
	}, nil
}

// Close ends the session and closes the connection.
func (c *Client) Close() error {
	_ = protocol.WriteCommand(c.conn, protocol.Command{Kind: protocol.CommandEnd})
	return c.conn.Close()
}

func (c *Client) call(kind protocol.CommandKind, params ...protocol.Param) ([]protocol.Param, error) {
	if err := protocol.WriteCommand(c.conn, protocol.Command{Kind: kind, Params: params}); err != nil {
		return nil, err
	}
	answer, err := protocol.ReadAnswer(c.conn)
	if err != nil {
		return nil, err
	}
	if want, _ := kind.Answer(); answer.Kind != want {
		return nil, &protocol.ProtocolError{
			Reason: protocol.ReasonUnknownAnswer,
			Byte:   byte(answer.Kind),
			Detail: fmt.Sprintf("expected %s, got %s", want, answer.Kind),
		}
	}
	if err := answer.Err(); err != nil {
		return nil, err
	}
	return answer.Params, nil
}

type pair struct {
	id   int32
	text string
}

// listPairs unpacks [count, (id, text) x count].
func listPairs(params []protocol.Param) ([]pair, error) {
	if len(params) == 0 || params[0].Type != protocol.ParamNumber {
		return nil, malformedList(params)
	}
	count := int(params[0].Num)
	if count < 0 || len(params) != 1+2*count {
		return nil, malformedList(params)
	}
	pairs := make([]pair, 0, count)
	for i := 1; i < len(params); i += 2 {
		if params[i].Type != protocol.ParamNumber || params[i+1].Type != protocol.ParamText {
			return nil, malformedList(params)
		}
		pairs = append(pairs, pair{id: params[i].Num, text: params[i+1].Text})
	}
	return pairs, nil
}

func singleNumber(params []protocol.Param) (int32, error) {
	if len(params) != 1 || params[0].Type != protocol.ParamNumber {
		return 0, &protocol.ProtocolError{Reason: protocol.ReasonInvalidParams, Detail: fmt.Sprintf("expected one number, got %v", params)}
	}
	return params[0].Num, nil
}

func malformedList(params []protocol.Param) error {
	return &protocol.ProtocolError{Reason: protocol.ReasonInvalidParams, Detail: fmt.Sprintf("malformed listing %v", params)}
}

func malformed(kind protocol.AnswerKind, params []protocol.Param) error {
	return &protocol.ProtocolError{Reason: protocol.ReasonInvalidParams, Byte: byte(kind), Detail: fmt.Sprintf("malformed %s %v", kind, params)}
}
