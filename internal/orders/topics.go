package orders

import "strconv"

// TopicOrderEvents carries every order lifecycle event, keyed by order id.
const TopicOrderEvents = "order.events"

// PartitionKey keeps all events of one order on one partition so they stay ordered.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
