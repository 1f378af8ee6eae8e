package shopify

// Bulk query documents for the three pulled collections. Bulk operations walk
// the full connection, so no first/after arguments; nested connections come
// back as separate JSONL lines carrying __parentId.

const CustomersBulkQuery = `
{
  customers {
    edges {
      node {
        id
        firstName
        lastName
        email
        createdAt
        tags
        note
        state
        amountSpent {
          amount
          currencyCode
        }
      }
    }
  }
}`

const ProductsBulkQuery = `
{
  products {
    edges {
      node {
        id
        title
        handle
        description
        descriptionHtml
        productType
        vendor
        tags
        status
        createdAt
        priceRangeV2 {
          maxVariantPrice { amount }
          minVariantPrice { amount }
        }
        variants {
          edges {
            node {
              id
              title
              price
              inventoryQuantity
            }
          }
        }
      }
    }
  }
}`

const OrdersBulkQuery = `
{
  orders {
    edges {
      node {
        id
        name
        email
        createdAt
        displayFinancialStatus
        totalDiscountsSet { shopMoney { amount currencyCode } }
        totalPriceSet { shopMoney { amount currencyCode } }
        lineItems {
          edges {
            node {
              title
              quantity
              discountedTotalSet { shopMoney { amount currencyCode } }
              originalTotalSet { shopMoney { amount currencyCode } }
            }
          }
        }
        customer {
          firstName
          lastName
          email
        }
      }
    }
  }
}`
